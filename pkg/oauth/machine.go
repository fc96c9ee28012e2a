package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/DomWilliams0/spotify-auth/pkg/logging"
)

// machine is the configuration shared by every phase of one login.
type machine struct {
	creds           ClientCredentials
	endpoint        oauth2.Endpoint
	transport       Transport
	browser         Browser
	clock           Clock
	out             io.Writer
	callbackHost    string
	callbackTimeout time.Duration

	exchanger *TokenExchanger
	gateway   *APIGateway
}

// Option configures a machine created by New.
type Option func(*machine)

// WithEndpoint sets the provider's authorize and token URLs.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(m *machine) {
		m.endpoint = endpoint
	}
}

// WithTransport sets the transport used for token and API requests.
func WithTransport(transport Transport) Option {
	return func(m *machine) {
		m.transport = transport
	}
}

// WithHTTPClient sends token and API requests through client.
func WithHTTPClient(client *http.Client) Option {
	return func(m *machine) {
		m.transport = NewHTTPTransport(client)
	}
}

// WithBrowser sets how the authorize URL is shown to the user.
func WithBrowser(browser Browser) Option {
	return func(m *machine) {
		m.browser = browser
	}
}

// WithClock sets the clock used to compute token expiry.
func WithClock(clock Clock) Option {
	return func(m *machine) {
		m.clock = clock
	}
}

// WithOutput sets where user-facing guidance is printed. Defaults to os.Stdout.
func WithOutput(out io.Writer) Option {
	return func(m *machine) {
		m.out = out
	}
}

// WithCallbackHost sets the host bound by the callback listener and used in
// the redirect URI. Defaults to DefaultCallbackHost.
func WithCallbackHost(host string) Option {
	return func(m *machine) {
		m.callbackHost = host
	}
}

// WithCallbackTimeout bounds the wait for the browser redirect. Zero, the
// default, waits until the context is cancelled.
func WithCallbackTimeout(timeout time.Duration) Option {
	return func(m *machine) {
		m.callbackTimeout = timeout
	}
}

// New creates the first phase of a login for creds.
func New(creds ClientCredentials, opts ...Option) *Unauthenticated {
	m := &machine{
		creds:        creds,
		endpoint:     DefaultEndpoint,
		browser:      SystemBrowser{},
		clock:        systemClock{},
		out:          os.Stdout,
		callbackHost: DefaultCallbackHost,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transport == nil {
		m.transport = NewHTTPTransport(nil)
	}

	m.exchanger = NewTokenExchanger(m.creds, m.endpoint.TokenURL, m.redirectURI(), m.transport, m.clock)
	m.gateway = NewAPIGateway(m.transport)
	return &Unauthenticated{m: m, state: &phaseState{}}
}

func (m *machine) redirectURI() string {
	return redirectURI(m.callbackHost, m.creds.Port())
}

// authorizeURL builds the provider authorize URL. show_dialog is only sent
// when showDialog is non-nil.
func (m *machine) authorizeURL(scope string, showDialog *bool) (string, error) {
	authURL, err := url.Parse(m.endpoint.AuthURL)
	if err != nil {
		return "", newError(KindProtocol, err, "invalid authorize endpoint %q", m.endpoint.AuthURL)
	}

	query := authURL.Query()
	query.Set("client_id", m.creds.ClientID)
	query.Set("response_type", "code")
	query.Set("redirect_uri", m.redirectURI())
	query.Set("scope", scope)
	if showDialog != nil {
		query.Set("show_dialog", fmt.Sprintf("%t", *showDialog))
	}

	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

func (m *machine) openBrowser(authURL string) {
	fmt.Fprintln(m.out, "Opening the browser, go there to sign in")
	if err := m.browser.Open(authURL); err != nil {
		logging.Warn("OAuth", "Could not open browser: %v", err)
		fmt.Fprintf(m.out, "Navigate to the following url in your browser:\n%s\n", authURL)
	}
}

// phaseState records whether a phase has produced its successor. It is
// shared by every copy of a phase value, and its lock is held for the whole
// transition so copies cannot run it twice.
type phaseState struct {
	mu       sync.Mutex
	consumed bool
}

// Unauthenticated is the first phase: credentials only.
type Unauthenticated struct {
	m     *machine
	state *phaseState
}

// Authorized holds a single-use authorization code.
type Authorized struct {
	m        *machine
	authCode string
	state    *phaseState
}

// TokenBearing holds a TokenSet and can sign API calls.
type TokenBearing struct {
	m        *machine
	authCode string
	tokens   TokenSet
}

// Credentials returns the client credentials of this login.
func (u *Unauthenticated) Credentials() ClientCredentials {
	if u.m == nil {
		return ClientCredentials{}
	}
	return u.m.creds
}

// AuthorizeURL returns the URL Authenticate would open for scope.
func (u *Unauthenticated) AuthorizeURL(scope string, showDialog *bool) (string, error) {
	if u.m == nil {
		return "", ErrInvalidPhase
	}
	return u.m.authorizeURL(scope, showDialog)
}

// RedirectURI returns the redirect URI sent in both the authorize request
// and the code exchange. It reflects WithCallbackHost and the credentials'
// callback port.
func (u *Unauthenticated) RedirectURI() string {
	if u.m == nil {
		return ""
	}
	return u.m.redirectURI()
}

// Authenticate sends the user to the provider's consent page and waits for
// the redirect carrying the authorization code.
//
// On success u and every copy of it are consumed. On failure u is left
// unchanged and may be used again.
func (u *Unauthenticated) Authenticate(ctx context.Context, scope string, showDialog *bool) (*Authorized, error) {
	if u.m == nil || u.state == nil {
		return nil, ErrInvalidPhase
	}
	u.state.mu.Lock()
	defer u.state.mu.Unlock()
	if u.state.consumed {
		return nil, ErrPhaseConsumed
	}
	m := u.m
	attempt := uuid.NewString()

	authURL, err := m.authorizeURL(scope, showDialog)
	if err != nil {
		return nil, err
	}

	listener, err := ListenForCallback(m.callbackHost, m.creds.Port())
	if err != nil {
		logging.Error("OAuth", err, "Login attempt %s could not bind callback listener", attempt)
		return nil, err
	}
	defer listener.Close()

	logging.Debug("OAuth", "Login attempt %s waiting for callback on %s", attempt, listener.Addr())
	m.openBrowser(authURL)

	if m.callbackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.callbackTimeout)
		defer cancel()
	}

	result, err := listener.Wait(ctx)
	if err != nil {
		logging.Warn("OAuth", "Login attempt %s failed: %v", attempt, err)
		return nil, err
	}
	if result.IsError() {
		logging.Warn("OAuth", "Login attempt %s denied by provider: %s", attempt, result.Error)
		return nil, newError(KindAuthentication, nil, "provider returned error %q", result.Error)
	}

	logging.Info("OAuth", "Login attempt %s authorized, code %s", attempt, NewRedactedToken(result.Code))
	u.state.consumed = true
	return &Authorized{m: m, authCode: result.Code, state: &phaseState{}}, nil
}

// ExchangeToken exchanges the authorization code for tokens.
//
// On success a is consumed and the code can never be exchanged again, not
// even through a copy of a. On failure a is left unchanged.
func (a *Authorized) ExchangeToken(ctx context.Context) (*TokenBearing, error) {
	if a.m == nil || a.state == nil {
		return nil, ErrInvalidPhase
	}
	a.state.mu.Lock()
	defer a.state.mu.Unlock()
	if a.state.consumed {
		return nil, ErrPhaseConsumed
	}

	tokens, err := a.m.exchanger.Exchange(ctx, a.authCode)
	if err != nil {
		logging.Warn("OAuth", "Token exchange failed: %v", err)
		return nil, err
	}

	logging.Info("OAuth", "Token exchange succeeded, scope %q", tokens.Scope)
	a.state.consumed = true
	return &TokenBearing{m: a.m, authCode: a.authCode, tokens: *tokens}, nil
}

// CallAPI sends an authenticated request to endpoint. See APIGateway.Call.
func (t *TokenBearing) CallAPI(ctx context.Context, method string, params url.Values, endpoint string) (*APIResult, error) {
	if t.m == nil {
		return nil, ErrInvalidPhase
	}
	return t.m.gateway.Call(ctx, t.tokens.AccessToken, method, params, endpoint)
}

// RefreshToken renews the access token in place. On error the current
// TokenSet is kept unchanged.
func (t *TokenBearing) RefreshToken(ctx context.Context) error {
	if t.m == nil {
		return ErrInvalidPhase
	}
	if err := t.m.exchanger.Refresh(ctx, &t.tokens); err != nil {
		logging.Warn("OAuth", "Token refresh failed: %v", err)
		return err
	}
	return nil
}

// Tokens returns a copy of the current TokenSet.
func (t *TokenBearing) Tokens() TokenSet {
	return t.tokens
}

// AuthCode returns the consumed authorization code, for diagnostics only.
func (t *TokenBearing) AuthCode() RedactedToken {
	return NewRedactedToken(t.authCode)
}

// Credentials returns the client credentials of this login.
func (t *TokenBearing) Credentials() ClientCredentials {
	if t.m == nil {
		return ClientCredentials{}
	}
	return t.m.creds
}

// TokenSource returns a static oauth2.TokenSource for the current access
// token. It does not refresh; call RefreshToken and take a new source.
func (t *TokenBearing) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(t.tokens.OAuth2Token())
}
