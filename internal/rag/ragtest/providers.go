package ragtest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"supportbot/internal/providers"
)

// Embedder wraps the deterministic mock provider and can be told to fail
// for inputs containing a marker.
type Embedder struct {
	inner  *providers.MockProvider
	calls  atomic.Int64
	mu     sync.Mutex
	failOn string
	err    error
	dimFor map[string]int
}

func NewEmbedder(dim int) *Embedder {
	return &Embedder{inner: providers.NewMockProvider(dim), dimFor: map[string]int{}}
}

// FailOn makes every input containing marker return err.
func (e *Embedder) FailOn(marker string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOn, e.err = marker, err
}

// WrongDimensionFor makes inputs containing marker come back with dim entries.
func (e *Embedder) WrongDimensionFor(marker string, dim int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dimFor[marker] = dim
}

func (e *Embedder) Calls() int { return int(e.calls.Load()) }

func (e *Embedder) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	e.calls.Add(1)
	e.mu.Lock()
	failOn, failErr := e.failOn, e.err
	dimFor := make(map[string]int, len(e.dimFor))
	for k, v := range e.dimFor {
		dimFor[k] = v
	}
	e.mu.Unlock()
	for _, in := range req.Inputs {
		if failOn != "" && strings.Contains(in, failOn) {
			return nil, providers.ProviderInfo{Name: "fake"}, failErr
		}
		for marker, dim := range dimFor {
			if strings.Contains(in, marker) {
				sub := req
				sub.Dimension = dim
				return e.inner.Embed(ctx, sub)
			}
		}
	}
	return e.inner.Embed(ctx, req)
}

// LLM records every request and replies with a fixed answer.
type LLM struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	requests []providers.GenerateRequest
}

func (l *LLM) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	info := providers.ProviderInfo{Name: "fake-llm", Model: "fake"}
	if l.Err != nil {
		return providers.GenerateResponse{}, info, l.Err
	}
	return providers.GenerateResponse{Text: l.Reply}, info, nil
}

func (l *LLM) Requests() []providers.GenerateRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]providers.GenerateRequest(nil), l.requests...)
}
