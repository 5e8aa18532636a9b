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

	"github.com/huggingduck/huggingduck/internal/auth"
	"github.com/huggingduck/huggingduck/internal/config"
	"github.com/huggingduck/huggingduck/internal/connection"
	"github.com/huggingduck/huggingduck/internal/dashboard"
	"github.com/huggingduck/huggingduck/internal/observability"
	"github.com/huggingduck/huggingduck/internal/sources"
)

func main() {
	cfg, err := config.LoadFromEnv("huggingduck-dashboard")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	conn, err := sources.OpenConnection(context.Background(), cfg, connection.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to open dataset connection",
			slog.String("dataset", cfg.Connection.Dataset),
			slog.String("source", string(cfg.Connection.Source)),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	deps := dashboard.Dependencies{
		Logger:            logger,
		Connection:        conn,
		Readiness:         dashboard.CombineReadinessChecks(dashboard.CheckConnectionHealthy(conn)),
		DependencyTimeout: 5 * time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := dashboard.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting dashboard server",
			slog.String("addr", cfg.HTTP.Address),
			slog.Any("tables", conn.Tables()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dashboard server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down dashboard server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		_ = conn.Close()
		os.Exit(1)
	}
}
