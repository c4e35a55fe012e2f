// Command ingest indexes one filing into Qdrant: parse, chunk, embed,
// store. The run is all-or-nothing; a failed run leaves no collection
// behind and re-running over an existing index rebuilds it from scratch.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finsightai/finsight/engine/domain"
	"github.com/finsightai/finsight/engine/ingest"
	"github.com/finsightai/finsight/engine/rag"
	"github.com/finsightai/finsight/engine/semantic"
	"github.com/finsightai/finsight/pkg/config"
	"github.com/finsightai/finsight/pkg/ollama"
	"github.com/finsightai/finsight/pkg/openaiapi"
	"github.com/finsightai/finsight/pkg/resilience"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "configuration file")
		file       = flag.String("file", "", "document to index (.pdf, .txt, .md)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *file == "" {
		logger.Error("no document given, use -file")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		logger.Error("embedder setup failed", "error", err)
		os.Exit(1)
	}

	index, err := semantic.NewQdrant(cfg.Index.QdrantAddr, cfg.Index.Collection)
	if err != nil {
		logger.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer index.Close()
	logger.Info("connected to Qdrant",
		"addr", cfg.Index.QdrantAddr, "collection", cfg.Index.Collection)

	pipeline := ingest.New(ingest.Deps{
		Embedder: embedder,
		Index:    index,
		Limiter:  resilience.NewLimiter(cfg.Ingest.EmbedRatePerSec, cfg.Ingest.EmbedWorkers),
		Workers:  cfg.Ingest.EmbedWorkers,
		Logger:   logger,
	}, ingest.ChunkerConfig{
		MaxChars: cfg.Ingest.MaxChunkChars,
		MinChars: cfg.Ingest.MinChunkChars,
	})

	start := time.Now()
	count, err := pipeline.Run(ctx, *file)
	if err != nil {
		logger.Error("ingestion failed", "file", *file, "error", err)
		if errors.Is(err, domain.ErrParse) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	logger.Info("index built",
		"file", *file,
		"chunks", count,
		"model", embedder.Model(),
		"duration", time.Since(start),
	)
}

func newEmbedder(cfg *config.Config, logger *slog.Logger) (rag.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderRemote:
		return openaiapi.NewEmbedder(cfg.Remote.BaseURL, cfg.Remote.APIKey(),
			cfg.Remote.EmbedModel, cfg.Index.Dimensions, cfg.Query.RequestTimeout(), logger)
	default:
		return ollama.NewEmbedder(cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel,
			cfg.Index.Dimensions, cfg.Query.RequestTimeout()), nil
	}
}
