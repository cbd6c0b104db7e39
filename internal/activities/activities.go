package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"supportbot/internal/blob"
	"supportbot/internal/rag"
)

type Ingester interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (rag.IngestResult, error)
}

type Activities struct {
	ingester Ingester
	blobs    blob.Store
	log      *zap.Logger
}

func New(ingester Ingester, blobs blob.Store, log *zap.Logger) *Activities {
	if log == nil {
		log = zap.NewNop()
	}
	return &Activities{ingester: ingester, blobs: blobs, log: log.Named("activities")}
}

// IngestDocumentActivity loads the uploaded bytes and runs the ingestion
// pipeline. Errors that cannot succeed on retry are returned as
// non-retryable application errors typed with their rag error kind.
func (a *Activities) IngestDocumentActivity(ctx context.Context, in IngestDocumentInput) (rag.IngestResult, error) {
	data, err := a.blobs.Get(ctx, in.BlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return rag.IngestResult{}, temporal.NewNonRetryableApplicationError(err.Error(), "NotFoundError", nil)
		}
		return rag.IngestResult{}, fmt.Errorf("load blob: %w", err)
	}
	res, err := a.ingester.Ingest(ctx, rag.IngestRequest{
		TenantID: in.TenantID,
		Filename: in.Filename,
		Data:     data,
	})
	if err != nil {
		a.log.Warn("ingest attempt failed",
			zap.String("tenant_id", in.TenantID),
			zap.String("blob_key", in.BlobKey),
			zap.String("error_kind", rag.Kind(err)),
			zap.Bool("retryable", rag.IsRetryable(err)),
			zap.Error(err))
		return rag.IngestResult{}, classify(err)
	}
	return res, nil
}

func classify(err error) error {
	kind := rag.Kind(err)
	switch {
	case rag.IsRetryable(err):
		return temporal.NewApplicationError(err.Error(), kind)
	case kind == "InternalError":
		// Database and blob hiccups; let the retry policy decide.
		return err
	default:
		return temporal.NewNonRetryableApplicationError(err.Error(), kind, nil)
	}
}
