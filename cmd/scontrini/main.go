package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scontrini/internal/amqp"
	"scontrini/internal/auth"
	"scontrini/internal/blob"
	"scontrini/internal/config"
	apphttp "scontrini/internal/http"
	applog "scontrini/internal/log"
	"scontrini/internal/services"
	"scontrini/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment")
	}

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentApp})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	signer, err := newSigner(ctx, cfg)
	if err != nil {
		slog.Error("Failed to configure blob signer", "error", err)
		os.Exit(1)
	}

	var events services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Error("Failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
	} else {
		slog.Info("AMQP URL not set, event publishing disabled")
	}

	svc := services.NewExpenseService(repo, events)

	var provider auth.Provider
	if cfg.AuthEnabled() {
		provider = auth.NewOAuth2Provider(cfg.OAuthIssuerURL, cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthRedirectURL)
		slog.Info("OAuth2 authentication enabled", "issuer", cfg.OAuthIssuerURL)
	} else {
		slog.Warn("Authentication disabled, API is open")
	}

	server := apphttp.NewServer(":"+cfg.Port, svc, signer, provider, cfg.FrontendURL)
	server.Handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(server.Handler)
	server.ReadTimeout = 10 * time.Second
	server.WriteTimeout = 10 * time.Second
	server.IdleTimeout = 60 * time.Second
	server.MaxHeaderBytes = 1 << 16

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("Shutting down", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Server listening", "addr", server.Addr, "blob_backend", cfg.BlobBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func newSigner(ctx context.Context, cfg *config.Config) (blob.Signer, error) {
	switch cfg.BlobBackend {
	case "s3":
		return blob.NewS3Signer(ctx, blob.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		slog.Warn("Using in-memory blob signer, uploads are not persisted")
		return &blob.MemorySigner{}, nil
	}
}
