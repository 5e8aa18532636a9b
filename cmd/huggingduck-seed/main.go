package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/huggingduck/huggingduck/internal/benchmark"
	"github.com/huggingduck/huggingduck/internal/config"
	"github.com/huggingduck/huggingduck/internal/observability"
	"github.com/huggingduck/huggingduck/internal/sources"
)

func main() {
	cfg, err := config.LoadFromEnv("huggingduck-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := benchmark.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	writer, err := sources.NewObjectWriter(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.String("source", string(cfg.Connection.Source)), slog.Any("error", err))
		os.Exit(1)
	}

	data, err := benchmark.NewGenerator(seedCfg.Seed).Generate(seedCfg.Passengers, seedCfg.Discrepancies)
	if err != nil {
		logger.Error("failed to generate benchmark", slog.Any("error", err))
		os.Exit(1)
	}
	files, err := data.Files(seedCfg.Formats...)
	if err != nil {
		logger.Error("failed to encode benchmark", slog.Any("error", err))
		os.Exit(1)
	}
	published, err := benchmark.Publish(ctx, writer, seedCfg.Dataset, files, logger)
	if err != nil {
		logger.Error("failed to publish benchmark", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("benchmark seeded",
		slog.String("dataset", seedCfg.Dataset),
		slog.String("source", string(cfg.Connection.Source)),
		slog.Int("passengers", len(data.Original)),
		slog.Int("discrepancies", data.Discrepancies()),
		slog.Int("files", len(published)),
	)
	if len(seedCfg.Formats) > 1 {
		logger.Warn("multiple formats share table names; set HUGGINGDUCK_FILE_FILTERS to one format before loading")
	}
}
