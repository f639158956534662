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
	"github.com/lanternhq/lantern/internal/telemetry"
	"github.com/lanternhq/lantern/internal/trace"
	"github.com/lanternhq/lantern/internal/vectorstore"
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

	slog.Info("vector store starting", "version", version, "port", cfg.VectorStorePort,
		"backend", cfg.VectorBackend, "provider", cfg.EmbeddingProvider)

	tp, otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, "vector-store", version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	recorder := trace.NewRecorder(tp, "lantern/vectorstore")

	var provider vectorstore.Provider
	switch cfg.EmbeddingProvider {
	case "ollama":
		provider = vectorstore.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.EmbeddingDimensions)
		logger.Info("embeddings: ollama", "model", cfg.OllamaModel, "dims", cfg.EmbeddingDimensions)
	default:
		provider = vectorstore.HashProvider{}
		logger.Info("embeddings: deterministic hash mock")
	}

	corpus := vectorstore.SeedCorpus()

	var index vectorstore.Index
	switch cfg.VectorBackend {
	case "qdrant":
		qdrantIndex, err := vectorstore.NewQdrantIndex(vectorstore.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dims:       uint64(cfg.EmbeddingDimensions), //nolint:gosec // validated positive in config.Validate
		}, logger)
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
		if err := qdrantIndex.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("qdrant ensure collection: %w", err)
		}
		if err := qdrantIndex.Seed(ctx, corpus); err != nil {
			return fmt.Errorf("qdrant seed: %w", err)
		}
		index = qdrantIndex
	default:
		index = vectorstore.NewMemoryIndex(corpus)
	}

	srv := vectorstore.New(vectorstore.Options{
		Addr:     fmt.Sprintf(":%d", cfg.VectorStorePort),
		Version:  version,
		Logger:   logger,
		Recorder: recorder,
		Provider: provider,
		Index:    index,
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

	slog.Info("vector store shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	return nil
}
