package oauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/spotify"
)

// DefaultCallbackPort is the local port the callback listener binds when
// ClientCredentials.CallbackPort is zero.
const DefaultCallbackPort = 30405

// DefaultCallbackHost is the host used both for binding the callback
// listener and in the redirect URI.
const DefaultCallbackHost = "localhost"

// DefaultEndpoint is the provider's authorize and token endpoint pair.
var DefaultEndpoint = spotify.Endpoint

// ClientCredentials identify the application to the provider.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string

	// CallbackPort is the local port receiving the provider redirect.
	// Defaults to DefaultCallbackPort if zero.
	CallbackPort int
}

// Port returns the effective callback port.
func (c ClientCredentials) Port() int {
	if c.CallbackPort == 0 {
		return DefaultCallbackPort
	}
	return c.CallbackPort
}

func redirectURI(host string, port int) string {
	return "http://" + host + ":" + strconv.Itoa(port)
}

// TokenSet is the renewable credential held by a TokenBearing phase.
//
// RefreshToken is never empty once a TokenSet exists. AccessToken and
// ExpiresAt always change together.
type TokenSet struct {
	AccessToken  string
	Scope        string
	ExpiresAt    time.Time
	RefreshToken string
}

// Scopes returns the granted scope as individual scope values.
func (t TokenSet) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ExpiredAt reports whether the access token has expired at now.
func (t TokenSet) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires within d of now.
func (t TokenSet) ExpiresWithin(now time.Time, d time.Duration) bool {
	return t.ExpiredAt(now.Add(d))
}

// OAuth2Token converts the TokenSet to an oauth2.Token for use with
// golang.org/x/oauth2 clients.
func (t TokenSet) OAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    bearerTokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
	return token.WithExtra(map[string]any{"scope": t.Scope})
}

// String renders the TokenSet with secret values redacted.
func (t TokenSet) String() string {
	return fmt.Sprintf("TokenSet{access_token: %s, scope: %q, expires_at: %s, refresh_token: %s}",
		NewRedactedToken(t.AccessToken), t.Scope, t.ExpiresAt.Format(time.RFC3339), NewRedactedToken(t.RefreshToken))
}

// GoString keeps %#v from printing token values.
func (t TokenSet) GoString() string {
	return t.String()
}

// CallbackResult is the outcome of one provider redirect. Exactly one of
// Code and Error is set.
type CallbackResult struct {
	// Code is the authorization code from the provider.
	Code string

	// Error is the provider's error parameter (e.g. "access_denied").
	Error string
}

// IsError returns true if the provider redirected with an error.
func (r CallbackResult) IsError() bool {
	return r.Error != ""
}

// APIResult is the classified response of an authenticated API call.
type APIResult struct {
	// StatusCode is the HTTP status returned by the endpoint.
	StatusCode int

	// Body is the decoded JSON response. For a failed call whose body was
	// not JSON it holds the raw body as a string.
	Body any

	// Raw is the undecoded response body.
	Raw []byte
}

// Success reports whether the endpoint answered 200.
func (r *APIResult) Success() bool {
	return r.StatusCode == 200
}

// Decode unmarshals the raw response body into v.
func (r *APIResult) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// Clock provides the current time; the token exchanger uses it to compute
// expiry times.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
