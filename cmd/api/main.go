package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"supportbot/internal/api"
	"supportbot/internal/app"
	"supportbot/internal/config"
	"supportbot/internal/logging"
	"supportbot/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger, err := logging.New("supportbot-api", cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatal(err)
	}
	err = run(cfg, logger)
	if err != nil {
		logger.Error("api stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	a, err := app.New(startCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer a.Close()
	if err := a.Migrate(startCtx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    logging.Temporal(logger),
	})
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	defer tc.Close()

	srv := api.NewServer(api.Options{
		Tenants:         a.Tenants,
		Ingester:        workflows.NewDispatcher(tc, cfg.TemporalTaskQueue, a.Blobs, cfg.IngestTimeout),
		RAG:             a.Service,
		Blobs:           a.Blobs,
		Health:          a.DB.Ping,
		Gatherer:        a.Registry,
		Metrics:         a.Metrics,
		Logger:          logger,
		FallbackMessage: cfg.FallbackMessage,
		TopK:            cfg.TopK,
	})
	httpSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("supportbot api listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("task_queue", cfg.TemporalTaskQueue),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.String("embed_providers", cfg.EmbedProviders))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
