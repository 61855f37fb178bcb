package main

import (
	"errors"
	"os"

	"github.com/alephnan/pcgcp/client"
	"github.com/alephnan/pcgcp/internal/config"
	"github.com/alephnan/pcgcp/internal/logging"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeGrantDenied indicates the user did not grant access.
	ExitCodeGrantDenied = 2
	// ExitCodeVerificationFailed indicates the backend could not verify the grant.
	ExitCodeVerificationFailed = 3
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// appConfig is loaded before any subcommand runs
	appConfig = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "pcgcp",
	Short: "Sign in with Google and list your Cloud projects",
	Long: `pcgcp signs you in with Google, has the backend verify the grant,
and lists the Cloud projects your account can see.

Run "pcgcp serve" to start the backend and "pcgcp signin" to sign in.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and exits with a code describing the failure
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pcgcp version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, client.ErrGrantDenied):
		return ExitCodeGrantDenied
	case errors.Is(err, client.ErrBackendRejected),
		errors.Is(err, client.ErrBackendUnavailable),
		errors.Is(err, client.ErrInvalidTransition):
		return ExitCodeVerificationFailed
	default:
		return ExitCodeError
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if _, err := logging.Init(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	appConfig = cfg
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSigninCmd())
}
