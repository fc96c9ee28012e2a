package mock

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ProviderConfig configures the mock provider behavior
type ProviderConfig struct {
	// ClientID is the expected client ID (defaults to "test-client")
	ClientID string

	// ClientSecret is the expected client secret (defaults to "test-secret")
	ClientSecret string

	// TokenLifetime is how long access tokens remain valid (defaults to 1h)
	TokenLifetime time.Duration

	// Clock is the clock to use for expiry (defaults to RealClock)
	Clock Clock

	// DenyAuthorization makes /authorize redirect back with this error
	// value instead of a code, as if the user declined consent.
	DenyAuthorization string

	// OmitRefreshToken leaves refresh_token out of every token response.
	OmitRefreshToken bool

	// RotateRefreshToken issues a new refresh token on every refresh grant.
	// By default the refresh response carries no refresh_token.
	RotateRefreshToken bool

	// TokenType overrides the token_type field (defaults to "Bearer").
	TokenType string

	// TokenStatus, when non-zero, makes /api/token answer with this status
	// and an error document.
	TokenStatus int

	// TokenBody, when non-empty, is returned verbatim with status 200 by
	// /api/token.
	TokenBody string

	// Debug enables debug logging
	Debug bool
}

// TokenRequest records one call to the token endpoint.
type TokenRequest struct {
	GrantType     string
	Authorization string
	Form          url.Values
}

// ProviderServer is a mock authorization server with an API endpoint
type ProviderServer struct {
	config     ProviderConfig
	httpServer *http.Server
	port       int
	running    bool
	mu         sync.RWMutex

	authCodes     map[string]*authCodeEntry // code -> entry
	issuedTokens  map[string]*issuedToken   // access_token -> token info
	refreshTokens map[string]string         // refresh_token -> scope
	tokenRequests []TokenRequest

	clock Clock
}

type authCodeEntry struct {
	RedirectURI string
	Scope       string
}

type issuedToken struct {
	Scope     string
	ExpiresAt time.Time
}

// TokenResponse is the token endpoint response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// NewProviderServer creates a new mock provider
func NewProviderServer(config ProviderConfig) *ProviderServer {
	if config.ClientID == "" {
		config.ClientID = "test-client"
	}
	if config.ClientSecret == "" {
		config.ClientSecret = "test-secret"
	}
	if config.TokenLifetime == 0 {
		config.TokenLifetime = 1 * time.Hour
	}
	if config.TokenType == "" {
		config.TokenType = "Bearer"
	}

	clock := config.Clock
	if clock == nil {
		clock = RealClock{}
	}

	return &ProviderServer{
		config:        config,
		authCodes:     make(map[string]*authCodeEntry),
		issuedTokens:  make(map[string]*issuedToken),
		refreshTokens: make(map[string]string),
		clock:         clock,
	}
}

// Start starts the provider on a random loopback port
func (s *ProviderServer) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.port, nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to listen: %w", err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", s.handleAuthorize)
	mux.HandleFunc("/api/token", s.handleToken)
	mux.HandleFunc("/v1/plain", s.handlePlain)
	mux.HandleFunc("/v1/unavailable", s.handleUnavailable)
	mux.HandleFunc("/v1/", s.handleAPI)

	s.httpServer = &http.Server{
		Handler:  mux,
		ErrorLog: log.New(io.Discard, "", 0),
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			if s.config.Debug {
				fmt.Fprintf(os.Stderr, "Mock provider error: %v\n", err)
			}
		}
	}()

	s.running = true
	if s.config.Debug {
		fmt.Fprintf(os.Stderr, "Mock provider started on port %d\n", s.port)
	}
	return s.port, nil
}

// Stop stops the provider
func (s *ProviderServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)
	s.running = false
	return err
}

// IsRunning returns whether the server is currently running
func (s *ProviderServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// BaseURL returns the root URL of the provider
func (s *ProviderServer) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

// Endpoint returns the authorize and token URLs of the provider
func (s *ProviderServer) Endpoint() oauth2.Endpoint {
	base := s.BaseURL()
	return oauth2.Endpoint{
		AuthURL:  base + "/authorize",
		TokenURL: base + "/api/token",
	}
}

// APIURL returns the URL of an API path such as "/me"
func (s *ProviderServer) APIURL(path string) string {
	return s.BaseURL() + "/v1" + path
}

// IssueAuthCode registers a code as if /authorize had granted it
func (s *ProviderServer) IssueAuthCode(redirectURI, scope string) string {
	code := generateOpaqueToken()
	s.mu.Lock()
	s.authCodes[code] = &authCodeEntry{RedirectURI: redirectURI, Scope: scope}
	s.mu.Unlock()
	return code
}

// TokenRequests returns the token endpoint calls seen so far
func (s *ProviderServer) TokenRequests() []TokenRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TokenRequest(nil), s.tokenRequests...)
}

// IsValidToken reports whether accessToken was issued and has not expired
func (s *ProviderServer) IsValidToken(accessToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.issuedTokens[accessToken]
	return ok && s.clock.Now().Before(token.ExpiresAt)
}

func (s *ProviderServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	scope := query.Get("scope")

	if s.config.Debug {
		fmt.Fprintf(os.Stderr, "Authorization request: client_id=%s, redirect_uri=%s, scope=%s, show_dialog=%s\n",
			clientID, redirectURI, scope, query.Get("show_dialog"))
	}

	if query.Get("response_type") != "code" {
		http.Error(w, "unsupported_response_type", http.StatusBadRequest)
		return
	}
	if clientID != s.config.ClientID {
		http.Error(w, "invalid_client", http.StatusBadRequest)
		return
	}

	redirectURL, err := url.Parse(redirectURI)
	if err != nil || redirectURI == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	q := redirectURL.Query()
	if s.config.DenyAuthorization != "" {
		q.Set("error", s.config.DenyAuthorization)
	} else {
		q.Set("code", s.IssueAuthCode(redirectURI, scope))
	}
	redirectURL.RawQuery = q.Encode()

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

func (s *ProviderServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	grantType := r.PostFormValue("grant_type")
	s.mu.Lock()
	s.tokenRequests = append(s.tokenRequests, TokenRequest{
		GrantType:     grantType,
		Authorization: r.Header.Get("Authorization"),
		Form:          r.PostForm,
	})
	s.mu.Unlock()

	if s.config.TokenStatus != 0 {
		writeJSON(w, s.config.TokenStatus, map[string]string{
			"error":             "server_error",
			"error_description": "simulated failure",
		})
		return
	}
	if s.config.TokenBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s.config.TokenBody)
		return
	}

	switch grantType {
	case "authorization_code":
		s.handleAuthCodeExchange(w, r)
	case "refresh_token":
		s.handleRefreshToken(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "unsupported_grant_type",
			"error_description": fmt.Sprintf("grant_type %s not supported", grantType),
		})
	}
}

func (s *ProviderServer) handleAuthCodeExchange(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue("client_id") != s.config.ClientID || r.PostFormValue("client_secret") != s.config.ClientSecret {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_client",
			"error_description": "Invalid client",
		})
		return
	}

	code := r.PostFormValue("code")
	s.mu.Lock()
	entry, exists := s.authCodes[code]
	if exists {
		delete(s.authCodes, code)
	}
	s.mu.Unlock()

	if !exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid authorization code",
		})
		return
	}
	if r.PostFormValue("redirect_uri") != entry.RedirectURI {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid redirect URI",
		})
		return
	}

	response := s.issue(entry.Scope)
	if !s.config.OmitRefreshToken {
		response.RefreshToken = generateOpaqueToken()
		s.mu.Lock()
		s.refreshTokens[response.RefreshToken] = entry.Scope
		s.mu.Unlock()
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *ProviderServer) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok || clientID != s.config.ClientID || clientSecret != s.config.ClientSecret {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_client",
			"error_description": "Invalid client",
		})
		return
	}

	refreshToken := r.PostFormValue("refresh_token")
	s.mu.RLock()
	scope, exists := s.refreshTokens[refreshToken]
	s.mu.RUnlock()

	if !exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid refresh token",
		})
		return
	}

	response := s.issue(scope)
	if s.config.RotateRefreshToken && !s.config.OmitRefreshToken {
		response.RefreshToken = generateOpaqueToken()
		s.mu.Lock()
		delete(s.refreshTokens, refreshToken)
		s.refreshTokens[response.RefreshToken] = scope
		s.mu.Unlock()
	}

	writeJSON(w, http.StatusOK, response)
}

// issue mints a new access token for scope
func (s *ProviderServer) issue(scope string) TokenResponse {
	accessToken := generateOpaqueToken()

	s.mu.Lock()
	s.issuedTokens[accessToken] = &issuedToken{
		Scope:     scope,
		ExpiresAt: s.clock.Now().Add(s.config.TokenLifetime),
	}
	s.mu.Unlock()

	return TokenResponse{
		AccessToken: accessToken,
		TokenType:   s.config.TokenType,
		Scope:       scope,
		ExpiresIn:   int(s.config.TokenLifetime.Seconds()),
	}
}

// handleAPI echoes the request back to a caller holding a valid token
func (s *ProviderServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	accessToken := ExtractBearerToken(r.Header.Get("Authorization"))

	s.mu.RLock()
	token, ok := s.issuedTokens[accessToken]
	s.mu.RUnlock()

	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "Invalid access token")
		return
	}
	if !s.clock.Now().Before(token.ExpiresAt) {
		writeAPIError(w, http.StatusUnauthorized, "The access token expired")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeAPIError(w, http.StatusBadRequest, "Malformed request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"method": r.Method,
		"path":   strings.TrimPrefix(r.URL.Path, "/v1"),
		"query":  r.URL.Query(),
		"form":   r.PostForm,
		"scope":  token.Scope,
	})
}

// handlePlain answers 200 with a body that is not JSON
func (s *ProviderServer) handlePlain(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "pong")
}

// handleUnavailable answers 503 with a body that is not JSON
func (s *ProviderServer) handleUnavailable(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = io.WriteString(w, "upstream unavailable")
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"status":  status,
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// generateOpaqueToken generates a random opaque token.
// Panics if crypto/rand fails, which should never happen in practice.
func generateOpaqueToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("crypto/rand failed: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// ExtractBearerToken returns the token of a "Bearer <token>" header value,
// or "" for any other value.
func ExtractBearerToken(authHeader string) string {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
