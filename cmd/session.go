package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DomWilliams0/spotify-auth/internal/cli"
	"github.com/DomWilliams0/spotify-auth/internal/config"
	"github.com/DomWilliams0/spotify-auth/pkg/logging"
	"github.com/DomWilliams0/spotify-auth/pkg/oauth"
)

// extraLoginOptions are appended to every login. Tests use it to swap the
// system browser for a simulated one.
var extraLoginOptions []oauth.Option

// loginFlags are the flags of every command that signs in.
type loginFlags struct {
	scope      string
	showDialog bool
	host       string
	port       int
	timeout    time.Duration
}

func (f *loginFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scope, "scope", "", "Space separated scopes to request (default from config)")
	cmd.Flags().BoolVar(&f.showDialog, "show-dialog", false, "Force the consent dialog even if access was granted before")
	cmd.Flags().StringVar(&f.host, "host", "", "Host for the local callback listener (default localhost)")
	cmd.Flags().IntVar(&f.port, "port", 0, "Port for the local callback listener (default 30405)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Give up waiting for the browser after this long (default: wait until interrupted)")
}

// apply overlays the flags the user set on cfg. Unset flags keep the
// configured values; --show-dialog is only sent when given explicitly.
func (f *loginFlags) apply(cmd *cobra.Command, cfg config.Config) config.Config {
	flags := cmd.Flags()
	if flags.Changed("scope") {
		cfg.Scope = f.scope
	}
	if flags.Changed("show-dialog") {
		showDialog := f.showDialog
		cfg.ShowDialog = &showDialog
	}
	if flags.Changed("host") {
		cfg.CallbackHost = f.host
	}
	if flags.Changed("port") {
		cfg.CallbackPort = f.port
	}
	if flags.Changed("timeout") {
		cfg.CallbackTimeout = f.timeout
	}
	return cfg
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// signIn runs the browser login and the code exchange for cfg.
func signIn(ctx context.Context, cmd *cobra.Command, cfg config.Config, quiet bool) (*oauth.TokenBearing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := append(cfg.Options(cmd.ErrOrStderr()), extraLoginOptions...)
	start := oauth.New(cfg.Credentials(), opts...)

	logging.Info("CLI", "Signing in as client %s with scope %q", cfg.ClientID, cfg.Scope)

	authorized, err := cli.WithSpinner(ctx, cmd.ErrOrStderr(), quiet, "Waiting for you to sign in...",
		func(ctx context.Context) (*oauth.Authorized, error) {
			return start.Authenticate(ctx, cfg.Scope, cfg.ShowDialog)
		})
	if err != nil {
		if kind, ok := oauth.KindOf(err); ok && kind == oauth.KindAuthentication {
			return nil, &cli.AuthFailedError{Reason: err}
		}
		return nil, cli.ClassifyConnectionError(err)
	}

	session, err := cli.WithSpinner(ctx, cmd.ErrOrStderr(), quiet, "Exchanging authorization code...",
		authorized.ExchangeToken)
	if err != nil {
		return nil, cli.ClassifyConnectionError(err)
	}
	return session, nil
}
