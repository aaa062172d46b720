package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"haikuslam/internal/app"
	"haikuslam/internal/config"
	"haikuslam/internal/identity"
	"haikuslam/internal/storage"
	"haikuslam/internal/storage/memory"
	"haikuslam/internal/storage/sqlite"
	"haikuslam/internal/telemetry"
	httpTransport "haikuslam/internal/transport/http"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "haikuslam",
		Short:   "Asynchronous haiku writing and voting game server.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ApplyEnv(cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	config.BindFlags(cmd.PersistentFlags(), cfg)
	cmd.AddCommand(newTokenCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("haikuslam v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// newTokenCmd mints a login token signed with the configured secret, for
// local testing without an identity provider.
func newTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		claims identity.Claims
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed login token",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Auth.TokenSecret == "" {
				return errors.New("token-secret is required to mint tokens")
			}
			verifier, err := newVerifier(cfg, []byte(cfg.Auth.TokenSecret))
			if err != nil {
				return err
			}
			token, err := verifier.Issue(claims, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&claims.Subject, "subject", "", "external user id (required)")
	fs.StringVar(&claims.Name, "name", "", "display name")
	fs.StringVar(&claims.Email, "email", "", "email address")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting haikuslam server",
		"version", releaseVersion,
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Storage.Backend,
	)

	shutdownTracing, err := telemetry.Setup(ctx, "haikuslam", releaseVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	secret := []byte(cfg.Auth.TokenSecret)
	if len(secret) == 0 {
		// only reachable outside production
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		logger.Warn("no token-secret set, using a random one; tokens will not survive a restart")
	}
	verifier, err := newVerifier(cfg, secret)
	if err != nil {
		return err
	}

	// Create game hub
	hub := app.NewHub(logger)
	defer hub.Close()

	svc := app.NewService(store, identity.NewDirectory(store, verifier), hub, cfg.Settings(), logger)
	svc.SweepConcurrency = cfg.Game.SweepConcurrency

	// Create HTTP server
	server := httpTransport.NewServer(cfg, svc, logger)

	errs := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errs:
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(sctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	if cfg.Storage.Backend == "memory" {
		return memory.New(cfg.Settings()), func() {}, nil
	}

	store, err := sqlite.Open(ctx, cfg.Storage.DBPath, cfg.Settings())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Error("close store failed", "error", err)
		}
	}, nil
}

func newVerifier(cfg *config.Config, secret []byte) (*identity.Verifier, error) {
	return identity.NewVerifier(identity.Config{
		Secret:   secret,
		Issuer:   cfg.Auth.TokenIssuer,
		Audience: cfg.Auth.TokenAudience,
	})
}

func newLogger(cfg *config.Config) *slog.Logger {
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, logOpts))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
