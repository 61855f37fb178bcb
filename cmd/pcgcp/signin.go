package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alephnan/pcgcp/client"
	"github.com/alephnan/pcgcp/internal/config"
	idp "github.com/alephnan/pcgcp/oauth2"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newSigninCmd() *cobra.Command {
	var (
		backendURL string
		dev        bool
		email      string
		noBrowser  bool
	)

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with Google and list your projects",
		Long: `Open Google's consent page, send the grant to the backend for
verification and print the projects your account can see.

With --dev no browser is opened; a development grant for --email is sent
to a backend started with "pcgcp serve --dev".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig.Client
			if cmd.Flags().Changed("backend") {
				cfg.BackendURL = backendURL
			}
			if cmd.Flags().Changed("email") {
				cfg.DevEmail = email
			}
			out := cmd.OutOrStdout()

			var provider client.IdentityProvider
			if dev {
				provider = idp.NewDevProvider(cfg.DevEmail, []byte(appConfig.Server.DevKey))
			} else {
				provider = newGoogleProvider(cfg, noBrowser, func(authURL string) error {
					_, err := fmt.Fprintf(out, "Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
					return err
				})
			}

			term := newTerminalNotifier(out)
			ctrl := client.NewAuthFlowController(cfg.BackendURL, client.NewSessionStore(), provider, term,
				client.WithLogger(slog.Default()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			err := ctrl.Signin(ctx)
			term.Stop()
			if err != nil {
				if ctx.Err() != nil {
					ctrl.Abandon()
					return fmt.Errorf("sign-in cancelled: %w", ctx.Err())
				}
				fmt.Fprintf(out, "%s %s\n", text.FgRed.Sprint("✗"), describeSigninError(err))
				return err
			}

			fmt.Fprintf(out, "%s Signed in as %s\n", text.FgGreen.Sprint("✓"), ctrl.Session().Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "", "Backend URL (default from config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Use the development provider instead of Google")
	cmd.Flags().StringVar(&email, "email", "", "Email of the development user")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the consent URL instead of opening a browser")
	return cmd
}

func newGoogleProvider(cfg config.ClientConfig, noBrowser bool, printURL func(string) error) *idp.GoogleProvider {
	p := idp.NewGoogleProvider(cfg.ClientID, cfg.ClientSecret, cfg.CallbackPort)
	p.Prompt = cfg.Prompt
	p.CallbackTimeout = cfg.Timeout
	if noBrowser {
		p.OpenURL = printURL
	}
	return p
}

func describeSigninError(err error) string {
	var denied *client.GrantDeniedError
	var rejected *client.BackendRejectedError
	var unavailable *client.BackendUnavailableError
	switch {
	case errors.As(err, &denied):
		return "Access was not granted: " + denied.Reason
	case errors.As(err, &rejected):
		return fmt.Sprintf("The backend rejected the sign-in (%d): %s", rejected.StatusCode, rejected.Reason)
	case errors.As(err, &unavailable):
		return "Could not reach the backend at " + unavailable.Endpoint
	default:
		return err.Error()
	}
}
