// Package logging provides subsystem-tagged structured logging built on
// Go's slog package.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("OAuth", "Token exchange succeeded")
//	logging.Debug("Config", "Loaded configuration from %s", configPath)
//	logging.Warn("OAuth", "Could not open browser: %v", err)
//	logging.Error("CLI", err, "Login failed")
//
// Every record carries a "subsystem" attribute; Error records also carry
// an "error" attribute. Before InitForCLI is called records go to
// slog.Default(), so the library packages log sensibly when embedded.
//
// # Subsystems
//
//   - OAuth: login phases, token exchange and refresh, API calls
//   - Config: configuration loading and validation
//   - CLI: command execution
//
// Secret values (tokens, codes, client secrets) are never passed to the
// logger; callers wrap them in oauth.RedactedToken.
package logging
