package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder waits on a token bucket before every call so bursts of
// concurrent chunk embeddings stay under the provider's request quota.
type RateLimitedEmbedder struct {
	next    EmbeddingProvider
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder returns next unchanged when rps is not positive.
func NewRateLimitedEmbedder(next EmbeddingProvider, rps float64, burst int) EmbeddingProvider {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimitedEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, ProviderInfo{}, requestError("ratelimit", "embed", err)
	}
	return r.next.Embed(ctx, req)
}
