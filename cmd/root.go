package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DomWilliams0/spotify-auth/internal/cli"
	"github.com/DomWilliams0/spotify-auth/internal/config"
	"github.com/DomWilliams0/spotify-auth/pkg/logging"
)

// rootCmd represents the base command for the spotify-auth application.
var rootCmd = newRootCmd()

// version is reported by the version command and --version.
var version = "dev"

// app holds the state shared by subcommands once PersistentPreRunE has run.
type app struct {
	flags  cli.CommandFlags
	config config.Config
}

// newRootCmd builds the command tree. Each call returns an independent tree
// with its own flag state.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "spotify-auth",
		Short: "Sign in to Spotify from the command line and call the Web API",
		Long: `spotify-auth runs the OAuth2 authorization code flow against Spotify:
it opens your browser on the consent page, captures the redirect on a local
port, exchanges the code for tokens and can then call Web API endpoints and
refresh the access token.

Client credentials come from ~/.config/spotify-auth/config.yaml, a .env file
or SPOTIFY_AUTH_* environment variables.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage:      true,
		Version:           version,
		PersistentPreRunE: a.setup,
	}
	root.SetVersionTemplate(`{{printf "spotify-auth version %s\n" .Version}}`)

	cli.RegisterCommonFlags(root, &a.flags)

	root.AddCommand(newLoginCmd(a))
	root.AddCommand(newCallCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// setup loads .env files and configuration, then initialises logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.flags.EnvFile != "" {
		if err := godotenv.Load(a.flags.EnvFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", a.flags.EnvFile, err)
		}
	} else {
		// .env in the working directory is optional
		_ = godotenv.Load()
	}

	cfg, err := config.LoadConfig(a.flags.ConfigPath)
	if err != nil {
		return err
	}
	a.config = cfg

	level, err := logging.ParseLevel(a.flags.EffectiveLogLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	logging.Debug("CLI", "Running %s with config directory %s", cmd.CommandPath(), a.flags.ConfigPath)
	return nil
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(cli.ExitCodeFor(err))
	}
}
