// Package app wires configuration, storage, providers and the RAG core into
// the object graph shared by the api, worker and ragctl binaries.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"supportbot/internal/blob"
	"supportbot/internal/config"
	"supportbot/internal/metrics"
	"supportbot/internal/providers"
	"supportbot/internal/rag"
	"supportbot/internal/storage"
)

type App struct {
	Config    config.Config
	Log       *zap.Logger
	DB        *storage.DB
	Tenants   *storage.TenantRepo
	Documents *storage.DocumentRepo
	Clients   *storage.ClientRepo
	Audit     *storage.LLMAuditRepo
	Blobs     blob.Store
	Providers *providers.Manager
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Pipeline  *rag.Pipeline
	Service   *rag.Service

	closers []func()
}

// New connects to Postgres and builds the RAG core. It does not migrate.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg, Log: log}

	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	a.Tenants = storage.NewTenantRepo(db)
	a.Documents = storage.NewDocumentRepo(db)
	a.Clients = storage.NewClientRepo(db)
	a.Audit = storage.NewLLMAuditRepo(db)

	if a.Blobs, err = blob.New(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if a.Providers, err = providers.NewManager(cfg); err != nil {
		a.Close()
		return nil, err
	}
	embedder, err := a.embedder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	llm, llmRef := a.Providers.LLM()

	chunker, err := rag.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pipeline = rag.NewPipeline(rag.NewDocumentExtractor(), chunker, embedder, a.Documents, a.Tenants, rag.PipelineOptions{
		Dimension:       cfg.EmbedDim,
		Concurrency:     cfg.EmbedConcurrency,
		ProviderTimeout: cfg.ProviderTimeout,
		Logger:          log,
		Metrics:         a.Metrics,
		Auditor:         a.Audit,
	})
	a.Service = rag.NewService(embedder, llm, a.Documents, a.Tenants, a.Clients, rag.ServiceOptions{
		Dimension:       cfg.EmbedDim,
		ProviderTimeout: cfg.ProviderTimeout,
		TopK:            cfg.TopK,
		Temperature:     cfg.Temperature,
		RecentTurns:     cfg.RecentTurns,
		Logger:          log,
		Metrics:         a.Metrics,
		Auditor:         a.Audit,
	})
	log.Info("rag core ready",
		zap.String("llm_provider", llmRef.Raw),
		zap.Int("embed_dim", cfg.EmbedDim),
		zap.Int("chunk_size", chunker.Size()),
		zap.Int("chunk_overlap", chunker.Overlap()),
		zap.String("blob_backend", cfg.BlobBackend))
	return a, nil
}

// embedder decorates the configured provider: a token bucket sits in front
// of the provider, and the Redis cache (when configured) in front of both so
// cache hits never spend quota.
func (a *App) embedder(ctx context.Context) (providers.EmbeddingProvider, error) {
	cfg := a.Config
	base, ref := a.Providers.Embedder()
	configured := make([]string, 0)
	for _, r := range a.Providers.EmbedProviderRefs() {
		configured = append(configured, r.Raw)
	}
	a.Log.Debug("embedding providers configured", zap.Strings("providers", configured))
	e := providers.NewRateLimitedEmbedder(base, cfg.EmbedRateLimit, cfg.EmbedBurst)
	if cfg.RedisURL == "" {
		a.Log.Info("embedding provider", zap.String("provider", ref.Raw), zap.Bool("cache", false))
		return e, nil
	}
	cache, err := providers.NewRedisCache(cfg.RedisURL, "")
	if err != nil {
		return nil, err
	}
	if err := cache.Ping(ctx); err != nil {
		_ = cache.Close()
		a.Log.Warn("embedding cache unavailable, continuing without it", zap.Error(err))
		return e, nil
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Log.Info("embedding provider", zap.String("provider", ref.Raw), zap.Bool("cache", true),
		zap.String("cache_namespace", a.Providers.EmbedNamespace()))
	return providers.NewCachedEmbedder(e, cache, a.Providers.EmbedNamespace(), cfg.EmbedCacheTTL), nil
}

func (a *App) Migrate(ctx context.Context) error {
	return a.DB.Migrate(ctx, a.Config.EmbedDim)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
