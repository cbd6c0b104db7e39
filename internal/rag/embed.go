package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"supportbot/internal/metrics"
	"supportbot/internal/providers"
)

// embedCall performs single-text embedding calls under a per-call timeout
// and enforces the configured dimension.
type embedCall struct {
	provider providers.EmbeddingProvider
	timeout  time.Duration
	dim      int
	metrics  *metrics.Metrics
	auditor  CallAuditor
}

func (e embedCall) one(ctx context.Context, tenantID, op, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	vecs, info, err := e.provider.Embed(callCtx, providers.EmbedRequest{Operation: op, Inputs: []string{text}, Dimension: e.dim})
	e.metrics.ProviderCall(info.Name, "embed", err)
	audit(ctx, e.auditor, CallRecord{Operation: "embed_" + op, TenantID: tenantID, Provider: info.Name, Model: info.Model}, err)
	if err != nil {
		return nil, toProviderError("embed", err)
	}
	if len(vecs) != 1 {
		return nil, &ProviderError{Op: "embed", Err: fmt.Errorf("expected 1 embedding, got %d", len(vecs))}
	}
	if e.dim > 0 && len(vecs[0]) != e.dim {
		return nil, &DataIntegrityError{Reason: fmt.Sprintf("embedding has %d dimensions, expected %d", len(vecs[0]), e.dim)}
	}
	return vecs[0], nil
}

func audit(ctx context.Context, a CallAuditor, rec CallRecord, err error) {
	if a == nil {
		return
	}
	rec.Status = "ok"
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = string(providers.ClassifyError(err))
	}
	_ = a.RecordCall(context.WithoutCancel(ctx), rec)
}

// toProviderError maps a provider failure into the RAG taxonomy, keeping the
// retryable classification.
func toProviderError(op string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	retryable := providers.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
	return &ProviderError{Op: op, Retryable: retryable, Err: err}
}
