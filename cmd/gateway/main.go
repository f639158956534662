package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/config"
	"github.com/lanternhq/lantern/internal/gateway"
	"github.com/lanternhq/lantern/internal/ratelimit"
	"github.com/lanternhq/lantern/internal/router"
	"github.com/lanternhq/lantern/internal/telemetry"
	"github.com/lanternhq/lantern/internal/trace"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("LANTERN_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("gateway starting", "version", version, "port", cfg.GatewayPort)

	tp, otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, "api-gateway", version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	recorder := trace.NewRecorder(tp, "lantern/gateway")

	var authn auth.Authenticator
	switch cfg.AuthMode {
	case "jwt":
		jwtAuth, err := auth.NewJWT(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		authn = jwtAuth
		logger.Info("auth: jwt (Ed25519)")
	default:
		authn = auth.NewStatic(cfg.AdminToken)
		logger.Info("auth: static demo tokens")
	}

	limiter := ratelimit.NewFixedWindow(cfg.RateLimit, cfg.RateLimitWindow, cfg.RateLimitRetention)
	defer func() { _ = limiter.Close() }()
	logger.Info("rate limiting: fixed window",
		"limit", cfg.RateLimit, "window", cfg.RateLimitWindow, "retained", cfg.RateLimitRetention)

	rt := router.New(router.Table{
		"qa":           cfg.QAURL,
		"vector-store": cfg.VectorStoreURL,
	}, recorder, logger, router.Options{
		Timeout:  cfg.ForwardTimeout,
		RetryMax: cfg.RetryMax,
	})

	srv := gateway.New(gateway.Options{
		Addr:     fmt.Sprintf(":%d", cfg.GatewayPort),
		Version:  version,
		Logger:   logger,
		Recorder: recorder,
		Auth:     authn,
		Limiter:  limiter,
		Router:   rt,
		SinkURL:  cfg.SinkURL,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("gateway shutting down",
		"spans_opened", recorder.Opened(), "spans_in_flight", recorder.InFlight())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	return nil
}
