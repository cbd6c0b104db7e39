package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"supportbot/internal/metrics"
	"supportbot/internal/models"
	"supportbot/internal/providers"
	"supportbot/internal/util"
)

type IngestState string

const (
	StateReceived  IngestState = "RECEIVED"
	StateExtracted IngestState = "EXTRACTED"
	StateChunked   IngestState = "CHUNKED"
	StateEmbedded  IngestState = "EMBEDDED"
	StatePersisted IngestState = "PERSISTED"
)

type IngestRequest struct {
	TenantID string
	Filename string
	Data     []byte
}

type IngestResult struct {
	DocumentID   string `json:"document_id"`
	Name         string `json:"name"`
	ChunkCount   int    `json:"chunk_count"`
	Deduplicated bool   `json:"deduplicated"`
}

type PipelineOptions struct {
	Dimension       int
	Concurrency     int
	ProviderTimeout time.Duration
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	Auditor         CallAuditor
}

// Pipeline turns an uploaded file into a persisted document with embedded
// chunks. A document is either fully stored or not stored at all.
type Pipeline struct {
	extractor   Extractor
	chunker     *Chunker
	embed       embedCall
	repo        Repository
	tenants     TenantStore
	concurrency int
	log         *zap.Logger
	metrics     *metrics.Metrics
}

func NewPipeline(extractor Extractor, chunker *Chunker, embedder providers.EmbeddingProvider, repo Repository, tenants TenantStore, opts PipelineOptions) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embed: embedCall{
			provider: embedder,
			timeout:  opts.ProviderTimeout,
			dim:      opts.Dimension,
			metrics:  opts.Metrics,
			auditor:  opts.Auditor,
		},
		repo:        repo,
		tenants:     tenants,
		concurrency: opts.Concurrency,
		log:         opts.Logger.Named("ingest"),
		metrics:     opts.Metrics,
	}
}

func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	res, err := p.ingest(ctx, req)
	switch {
	case err != nil:
		p.metrics.IngestResult("failed")
		p.log.Warn("ingestion failed",
			zap.String("tenant_id", req.TenantID),
			zap.String("name", req.Filename),
			zap.String("error_kind", Kind(err)),
			zap.Error(err))
	case res.Deduplicated:
		p.metrics.IngestResult("deduplicated")
	default:
		p.metrics.IngestResult("persisted")
	}
	return res, err
}

func (p *Pipeline) ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if err := ValidateFilename(req.Filename); err != nil {
		return IngestResult{}, err
	}
	if len(req.Data) == 0 {
		return IngestResult{}, &ValidationError{Field: "file", Reason: "empty upload"}
	}
	if err := p.checkTenant(ctx, req.TenantID); err != nil {
		return IngestResult{}, err
	}

	hash := util.SHA256Hex(req.Data)
	if existing, ok, err := p.repo.FindDocumentByHash(ctx, req.TenantID, hash); err != nil {
		return IngestResult{}, fmt.Errorf("find document by hash: %w", err)
	} else if ok {
		return p.deduplicated(existing)
	}
	p.state(StateReceived, req.TenantID, req.Filename, zap.Int("bytes", len(req.Data)))

	text, err := p.extractor.Extract(req.Filename, req.Data)
	if err != nil {
		return IngestResult{}, err
	}
	p.state(StateExtracted, req.TenantID, req.Filename, zap.Int("chars", len(text)))

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return IngestResult{}, &ValidationError{Field: "file", Reason: ErrNoExtractableText.Error()}
	}
	p.state(StateChunked, req.TenantID, req.Filename, zap.Int("chunks", len(chunks)))

	vectors, err := p.embedAll(ctx, req.TenantID, chunks)
	if err != nil {
		return IngestResult{}, err
	}
	p.metrics.ChunksEmbedded(len(vectors))
	p.state(StateEmbedded, req.TenantID, req.Filename)

	var docID string
	err = p.repo.WithinTx(ctx, func(w DocumentWriter) error {
		id, err := w.SaveDocument(ctx, req.TenantID, req.Filename, hash)
		if err != nil {
			return err
		}
		for i, chunk := range chunks {
			if err := w.SaveChunk(ctx, id, i, chunk, vectors[i]); err != nil {
				return fmt.Errorf("save chunk %d: %w", i, err)
			}
		}
		docID = id
		return nil
	})
	if errors.Is(err, ErrDuplicateDocument) {
		// A concurrent ingestion of the same bytes committed first.
		existing, ok, ferr := p.repo.FindDocumentByHash(ctx, req.TenantID, hash)
		if ferr != nil || !ok {
			return IngestResult{}, fmt.Errorf("persist document: %w", err)
		}
		return p.deduplicated(existing)
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("persist document: %w", err)
	}
	p.state(StatePersisted, req.TenantID, req.Filename, zap.String("document_id", docID))
	return IngestResult{DocumentID: docID, Name: req.Filename, ChunkCount: len(chunks)}, nil
}

func (p *Pipeline) checkTenant(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	t, err := p.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if !t.Active {
		return &NotFoundError{Kind: "tenant", ID: tenantID}
	}
	return nil
}

func (p *Pipeline) deduplicated(existing models.DocumentSummary) (IngestResult, error) {
	p.log.Info("document already ingested",
		zap.String("tenant_id", existing.TenantID),
		zap.String("document_id", existing.DocumentID))
	return IngestResult{DocumentID: existing.DocumentID, Name: existing.Name, ChunkCount: existing.ChunkCount, Deduplicated: true}, nil
}

// embedAll embeds every chunk with bounded concurrency. The first failure
// cancels the calls still in flight.
func (p *Pipeline) embedAll(ctx context.Context, tenantID string, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			vec, err := p.embed.one(gctx, tenantID, "ingest", chunk)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *Pipeline) state(s IngestState, tenantID, name string, fields ...zap.Field) {
	p.metrics.IngestState(string(s))
	p.log.Info("ingest state",
		append([]zap.Field{zap.String("state", string(s)), zap.String("tenant_id", tenantID), zap.String("name", name)}, fields...)...)
}
