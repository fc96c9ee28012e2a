// Package config provides configuration management for spotify-auth.
//
// Configuration is layered. Each layer overrides the one before it:
//
//  1. Built-in defaults (the Spotify endpoints, callback port 30405)
//  2. config.yaml in the configuration directory
//  3. SPOTIFY_AUTH_* environment variables
//  4. Command line flags, applied by the cmd package
//
// The default configuration directory is ~/.config/spotify-auth. Users can
// point at another directory with the --config-path flag.
//
// # Configuration File
//
//	clientId: 0123456789abcdef
//	clientSecret: fedcba9876543210
//	callbackPort: 30405
//	callbackTimeout: 5m
//	scope: user-read-private user-read-email
//	showDialog: true
//	logLevel: debug
//
// # Environment Variables
//
//	SPOTIFY_AUTH_CLIENT_ID, SPOTIFY_AUTH_CLIENT_SECRET, SPOTIFY_AUTH_CALLBACK_HOST,
//	SPOTIFY_AUTH_CALLBACK_PORT, SPOTIFY_AUTH_CALLBACK_TIMEOUT, SPOTIFY_AUTH_SCOPE,
//	SPOTIFY_AUTH_SHOW_DIALOG, SPOTIFY_AUTH_AUTHORIZE_URL, SPOTIFY_AUTH_TOKEN_URL,
//	SPOTIFY_AUTH_API_BASE_URL, SPOTIFY_AUTH_LOG_LEVEL
//
// Validate reports every problem at once as ValidationErrors; load failures
// are returned as ConfigurationError values naming the offending source.
package config
