package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alephnan/pcgcp"
	"github.com/alephnan/pcgcp/internal/config"
	idp "github.com/alephnan/pcgcp/oauth2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2/google"
)

func newServeCmd() *cobra.Command {
	var (
		port      int
		dev       bool
		staticDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the verification backend",
		Long: `Run the backend that verifies sign-in grants and lists projects.

Without --dev the OAuth client is read from the client secret file and
grants are verified against Google. With --dev the backend accepts grants
from "pcgcp signin --dev" and answers with a fixed project list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig.Server
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("dev") {
				cfg.Dev = dev
			}
			if cmd.Flags().Changed("static-dir") {
				cfg.StaticDir = staticDir
			}

			handler, err := newAuthorizationHandler(cfg)
			if err != nil {
				return err
			}
			srv := pcgcp.NewServer(handler)
			srv.StaticDir = cfg.StaticDir
			srv.ShutdownTimeout = cfg.ShutdownTimeout
			if cfg.RedisURL != "" {
				rdb, err := newRedisClient(cfg.RedisURL)
				if err != nil {
					return err
				}
				defer rdb.Close()
				srv.Session.Store = pcgcp.NewRedisSessionStore(rdb, "")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("Starting backend", "port", cfg.Port, "dev", cfg.Dev)
			return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&dev, "dev", false, "Accept development grants instead of Google's")
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "Directory of static files to serve at /")
	return cmd
}

func newAuthorizationHandler(cfg config.ServerConfig) (*pcgcp.AuthorizationHandler, error) {
	if cfg.Dev {
		slog.Warn("Running in development mode, grants are not verified with Google")
		return &pcgcp.AuthorizationHandler{
			Verifier:  pcgcp.NewHMACIDTokenVerifier([]byte(cfg.DevKey)),
			Exchanger: pcgcp.DevExchanger{},
			Projects:  pcgcp.StaticProjectLister(cfg.DevProjects),
		}, nil
	}

	data, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("error reading client secret: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(data, idp.DefaultScopes...)
	if err != nil {
		return nil, fmt.Errorf("error parsing client secret: %w", err)
	}
	if cfg.RedirectURL != "" {
		oauthConfig.RedirectURL = cfg.RedirectURL
	}

	return &pcgcp.AuthorizationHandler{
		Verifier:  pcgcp.NewGoogleIDTokenVerifier(oauthConfig.ClientID),
		Exchanger: oauthConfig,
		Projects:  &pcgcp.CloudResourceManagerLister{},
	}, nil
}

func newRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
