package config

import "github.com/DomWilliams0/spotify-auth/pkg/oauth"

const (
	// DefaultAPIBaseURL is prepended to relative API endpoints
	DefaultAPIBaseURL = "https://api.spotify.com/v1"

	// DefaultScope is requested when no scope is configured
	DefaultScope = "user-read-private"

	// DefaultLogLevel is used when no level is configured
	DefaultLogLevel = "info"
)

// GetDefaultConfig returns default configuration
func GetDefaultConfig() Config {
	return Config{
		CallbackHost: oauth.DefaultCallbackHost,
		CallbackPort: oauth.DefaultCallbackPort,
		Scope:        DefaultScope,
		AuthorizeURL: oauth.DefaultEndpoint.AuthURL,
		TokenURL:     oauth.DefaultEndpoint.TokenURL,
		APIBaseURL:   DefaultAPIBaseURL,
		LogLevel:     DefaultLogLevel,
	}
}
