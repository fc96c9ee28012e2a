package config

import (
	"io"
	"strings"

	"golang.org/x/oauth2"

	"github.com/DomWilliams0/spotify-auth/pkg/oauth"
)

// Credentials returns the client credentials for a login.
func (c Config) Credentials() oauth.ClientCredentials {
	return oauth.ClientCredentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		CallbackPort: c.CallbackPort,
	}
}

// Endpoint returns the configured authorize and token URLs.
func (c Config) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  c.AuthorizeURL,
		TokenURL: c.TokenURL,
	}
}

// Options returns the login options described by c. Guidance for the user
// is printed to out.
func (c Config) Options(out io.Writer) []oauth.Option {
	return []oauth.Option{
		oauth.WithEndpoint(c.Endpoint()),
		oauth.WithCallbackHost(c.CallbackHost),
		oauth.WithCallbackTimeout(c.CallbackTimeout),
		oauth.WithOutput(out),
	}
}

// ResolveEndpoint returns endpoint unchanged if it is an absolute URL and
// otherwise joins it to APIBaseURL, so "me" and "/me" both become
// "https://api.spotify.com/v1/me".
func (c Config) ResolveEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimRight(c.APIBaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
