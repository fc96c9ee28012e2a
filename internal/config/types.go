package config

import "time"

// Config is the top-level configuration structure for spotify-auth.
type Config struct {
	ClientID     string `yaml:"clientId,omitempty" env:"SPOTIFY_AUTH_CLIENT_ID"`
	ClientSecret string `yaml:"clientSecret,omitempty" env:"SPOTIFY_AUTH_CLIENT_SECRET"`

	CallbackHost    string        `yaml:"callbackHost,omitempty" env:"SPOTIFY_AUTH_CALLBACK_HOST"`       // Host bound for the redirect (default: localhost)
	CallbackPort    int           `yaml:"callbackPort,omitempty" env:"SPOTIFY_AUTH_CALLBACK_PORT"`       // Port bound for the redirect (default: 30405)
	CallbackTimeout time.Duration `yaml:"callbackTimeout,omitempty" env:"SPOTIFY_AUTH_CALLBACK_TIMEOUT"` // Zero waits until interrupted

	Scope      string `yaml:"scope,omitempty" env:"SPOTIFY_AUTH_SCOPE"`
	ShowDialog *bool  `yaml:"showDialog,omitempty" env:"SPOTIFY_AUTH_SHOW_DIALOG"` // Omitted from the authorize URL when unset

	AuthorizeURL string `yaml:"authorizeUrl,omitempty" env:"SPOTIFY_AUTH_AUTHORIZE_URL"`
	TokenURL     string `yaml:"tokenUrl,omitempty" env:"SPOTIFY_AUTH_TOKEN_URL"`
	APIBaseURL   string `yaml:"apiBaseUrl,omitempty" env:"SPOTIFY_AUTH_API_BASE_URL"` // Prefix for relative endpoints given to "call"

	LogLevel string `yaml:"logLevel,omitempty" env:"SPOTIFY_AUTH_LOG_LEVEL"`
}
