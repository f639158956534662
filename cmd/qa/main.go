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

	"github.com/lanternhq/lantern/internal/config"
	"github.com/lanternhq/lantern/internal/qa"
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
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("qa service starting", "version", version, "port", cfg.QAPort)

	tp, otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, "qa-service", version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	recorder := trace.NewRecorder(tp, "lantern/qa")

	rt := router.New(router.Table{
		"vector-store": cfg.VectorStoreURL,
	}, recorder, logger, router.Options{
		Timeout:  cfg.ForwardTimeout,
		RetryMax: cfg.RetryMax,
	})

	srv := qa.New(qa.Options{
		Addr:     fmt.Sprintf(":%d", cfg.QAPort),
		Version:  version,
		Logger:   logger,
		Recorder: recorder,
		Router:   rt,
		LLM:      qa.NewMockLLM(recorder, cfg.LLMModel, cfg.LLMLatency),
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

	slog.Info("qa service shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	return nil
}
