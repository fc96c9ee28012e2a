package cli

import (
	"github.com/spf13/cobra"

	"github.com/DomWilliams0/spotify-auth/internal/config"
)

// CommandFlags holds the flag values shared by every spotify-auth command.
type CommandFlags struct {
	// ConfigPath specifies the configuration directory
	ConfigPath string
	// EnvFile is an optional .env file loaded before configuration
	EnvFile string
	// LogLevel overrides the configured log level
	LogLevel string
	// Debug is shorthand for --log-level=debug
	Debug bool
	// Quiet suppresses progress indicators and non-essential output
	Quiet bool
}

// RegisterCommonFlags registers the persistent flags shared by all commands.
//
// The registered flags are:
//   - --config-path: Configuration directory
//   - --env-file: .env file to load (default: .env in the working directory, if present)
//   - --log-level: Log level (debug, info, warn, error)
//   - --debug: Enable debug logging
//   - --quiet/-q: Suppress non-essential output
func RegisterCommonFlags(cmd *cobra.Command, flags *CommandFlags) {
	defaultPath, err := config.DefaultConfigPath()
	if err != nil {
		defaultPath = ""
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", defaultPath, "Configuration directory")
	cmd.PersistentFlags().StringVar(&flags.EnvFile, "env-file", "", "Load environment variables from this file")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
}

// EffectiveLogLevel returns the level name to use given the configured one.
func (f *CommandFlags) EffectiveLogLevel(configured string) string {
	switch {
	case f.Debug:
		return "debug"
	case f.LogLevel != "":
		return f.LogLevel
	default:
		return configured
	}
}
