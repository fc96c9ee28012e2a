package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DomWilliams0/spotify-auth/pkg/logging"
)

// maxExpiresIn is the largest expires_in, in seconds, representable as a
// time.Duration.
const maxExpiresIn = float64(math.MaxInt64 / int64(time.Second))

// tokenResponse mirrors the token endpoint payload. Pointer fields tell an
// absent field apart from an empty one.
type tokenResponse struct {
	AccessToken  *string  `json:"access_token"`
	TokenType    *string  `json:"token_type"`
	Scope        *string  `json:"scope"`
	ExpiresIn    *float64 `json:"expires_in"`
	RefreshToken *string  `json:"refresh_token"`
}

// TokenExchanger runs the initial code exchange and the refresh protocol
// against the provider's token endpoint.
type TokenExchanger struct {
	creds       ClientCredentials
	tokenURL    string
	redirectURI string
	transport   Transport
	clock       Clock
}

// NewTokenExchanger creates an exchanger. redirectURI must match the one
// used in the authorize request. A nil transport or clock selects the
// defaults.
func NewTokenExchanger(creds ClientCredentials, tokenURL, redirectURI string, transport Transport, clock Clock) *TokenExchanger {
	if transport == nil {
		transport = NewHTTPTransport(nil)
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &TokenExchanger{
		creds:       creds,
		tokenURL:    tokenURL,
		redirectURI: redirectURI,
		transport:   transport,
		clock:       clock,
	}
}

// Exchange trades an authorization code for a new TokenSet. The response
// must carry a refresh token.
func (x *TokenExchanger) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {x.redirectURI},
		"client_id":     {x.creds.ClientID},
		"client_secret": {x.creds.ClientSecret},
	}

	body, err := x.post(ctx, data, nil)
	if err != nil {
		return nil, err
	}

	resp, err := x.parseTokenResponse(body)
	if err != nil {
		return nil, err
	}
	if resp.RefreshToken == nil || *resp.RefreshToken == "" {
		return nil, newError(KindProviderIncompatibility, nil, "refresh token not returned by %s: %s", x.tokenURL, string(body))
	}

	tokens := &TokenSet{
		AccessToken:  *resp.AccessToken,
		Scope:        *resp.Scope,
		ExpiresAt:    x.expiry(*resp.ExpiresIn),
		RefreshToken: *resp.RefreshToken,
	}
	logging.Debug("OAuth", "Exchanged authorization code, token expires at %s", tokens.ExpiresAt.Format(time.RFC3339))
	return tokens, nil
}

// Refresh obtains a new access token with tokens.RefreshToken and updates
// tokens in place. The refresh token is replaced only if the provider
// returned a new one. On error tokens is left unmodified.
func (x *TokenExchanger) Refresh(ctx context.Context, tokens *TokenSet) error {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {tokens.RefreshToken},
	}
	header := http.Header{}
	header.Set("Authorization", "Basic "+basicCredentials(x.creds.ClientID, x.creds.ClientSecret))

	body, err := x.post(ctx, data, header)
	if err != nil {
		return err
	}

	resp, err := x.parseTokenResponse(body)
	if err != nil {
		return err
	}

	tokens.AccessToken = *resp.AccessToken
	tokens.Scope = *resp.Scope
	tokens.ExpiresAt = x.expiry(*resp.ExpiresIn)
	rotated := resp.RefreshToken != nil && *resp.RefreshToken != ""
	if rotated {
		tokens.RefreshToken = *resp.RefreshToken
	}

	logging.Debug("OAuth", "Refreshed access token, expires at %s, refresh token rotated: %t",
		tokens.ExpiresAt.Format(time.RFC3339), rotated)
	return nil
}

func basicCredentials(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}

func (x *TokenExchanger) expiry(expiresIn float64) time.Time {
	return x.clock.Now().Add(time.Duration(expiresIn * float64(time.Second)))
}

// post sends a form-encoded request to the token endpoint and returns the
// body of a 200 response.
func (x *TokenExchanger) post(ctx context.Context, data url.Values, header http.Header) ([]byte, error) {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", contentTypeForm)
	header.Set("Accept", contentTypeJSON)

	logging.Debug("OAuth", "Token request with grant_type=%s", data.Get("grant_type"))

	resp, err := dispatch(ctx, x.transport, &Request{
		Method: http.MethodPost,
		URL:    x.tokenURL,
		Header: header,
		Body:   []byte(data.Encode()),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(x.tokenURL, resp.StatusCode, resp.Body)
	}
	return resp.Body, nil
}

// parseTokenResponse validates the fields shared by both grants.
func (x *TokenExchanger) parseTokenResponse(body []byte) (*tokenResponse, error) {
	if !json.Valid(body) {
		return nil, newError(KindProviderIncompatibility, nil, "JSON not returned by %s endpoint", x.tokenURL)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(KindProviderIncompatibility, err, "unknown token response: %s", string(body))
	}

	var missing []string
	if resp.AccessToken == nil {
		missing = append(missing, "access_token")
	}
	if resp.TokenType == nil {
		missing = append(missing, "token_type")
	}
	if resp.Scope == nil {
		missing = append(missing, "scope")
	}
	if resp.ExpiresIn == nil {
		missing = append(missing, "expires_in")
	}
	if len(missing) > 0 {
		return nil, newError(KindProviderIncompatibility, nil, "unknown token response (missing %s): %s",
			strings.Join(missing, ", "), string(body))
	}

	if *resp.TokenType != bearerTokenType {
		return nil, newError(KindProviderIncompatibility, nil, "unknown token type: %s", *resp.TokenType)
	}
	if *resp.ExpiresIn < 0 || *resp.ExpiresIn > maxExpiresIn {
		return nil, newError(KindProviderIncompatibility, nil, "expires_in out of range: %v", *resp.ExpiresIn)
	}
	return &resp, nil
}
