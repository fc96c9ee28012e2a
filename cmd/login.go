package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DomWilliams0/spotify-auth/internal/cli"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		login        loginFlags
		refreshCount int
		showTokens   bool
		endpoint     string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and show the issued tokens",
		Long: `Sign in through the browser and show the issued tokens.

The redirect URI http://localhost:<port> must be registered with your
Spotify application. Tokens are shown redacted unless --show-tokens is set.

With --endpoint the given Web API endpoint is called once after signing in,
and --refresh-count refreshes the access token that many times, calling the
endpoint again after each refresh.`,
		Example: `  spotify-auth login --scope "user-read-private user-read-email"
  spotify-auth login --endpoint me --refresh-count 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.ValidateOutputFormat(output); err != nil {
				return err
			}
			if refreshCount < 0 {
				return fmt.Errorf("--refresh-count must not be negative")
			}

			ctx, cancel := interruptible(cmd)
			defer cancel()

			cfg := login.apply(cmd, a.config)
			session, err := signIn(ctx, cmd, cfg, a.flags.Quiet)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !a.flags.Quiet {
				fmt.Fprintln(out, cli.FormatSuccess("Signed in"))
			}
			cli.PrintTokenSummary(out, session.Tokens(), time.Now(), showTokens)

			call := func() error {
				if endpoint == "" {
					return nil
				}
				result, err := session.CallAPI(ctx, "GET", nil, cfg.ResolveEndpoint(endpoint))
				if err != nil {
					return cli.ClassifyConnectionError(err)
				}
				return cli.PrintAPIResult(out, result, output)
			}

			if err := call(); err != nil {
				return err
			}
			for i := 1; i <= refreshCount; i++ {
				if err := session.RefreshToken(ctx); err != nil {
					return cli.ClassifyConnectionError(err)
				}
				if !a.flags.Quiet {
					fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Refreshed access token (%d/%d)", i, refreshCount)))
				}
				if err := call(); err != nil {
					return err
				}
			}
			if refreshCount > 0 {
				cli.PrintTokenSummary(out, session.Tokens(), time.Now(), showTokens)
			}
			return nil
		},
	}

	login.register(cmd)
	cmd.Flags().IntVar(&refreshCount, "refresh-count", 0, "Refresh the access token this many times after signing in")
	cmd.Flags().BoolVar(&showTokens, "show-tokens", false, "Print token values instead of redacting them")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Web API endpoint to call after signing in, e.g. \"me\"")
	cmd.Flags().StringVarP(&output, "output", "o", cli.OutputFormatTable, "Output format for --endpoint (table, json, yaml)")
	return cmd
}
