package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// EmbeddingCache stores encoded vectors by key. A miss is (nil, false, nil).
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if prefix == "" {
		prefix = "supportbot:embed:"
	}
	return &RedisCache{client: redis.NewClient(opts), prefix: prefix}, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// CachedEmbedder serves repeated inputs from the cache and only sends the
// misses to the wrapped provider. Cache failures degrade to a plain call.
type CachedEmbedder struct {
	next  EmbeddingProvider
	cache EmbeddingCache
	model string
	ttl   time.Duration
}

// NewCachedEmbedder wraps next. model namespaces the keys so vectors from
// different models or dimensions never mix.
func NewCachedEmbedder(next EmbeddingProvider, cache EmbeddingCache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model, ttl: ttl}
}

func (c *CachedEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	out := make([][]float32, len(req.Inputs))
	keys := make([]string, len(req.Inputs))
	var missIdx []int
	var missInputs []string
	for i, input := range req.Inputs {
		keys[i] = embeddingKey(c.model, req.Dimension, input)
		if raw, ok, err := c.cache.Get(ctx, keys[i]); err == nil && ok {
			if vec, err := decodeVector(raw); err == nil && (req.Dimension <= 0 || len(vec) == req.Dimension) {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missInputs = append(missInputs, input)
	}
	info := ProviderInfo{Name: "cache", Model: c.model}
	if len(missInputs) == 0 {
		return out, info, nil
	}
	sub := req
	sub.Inputs = missInputs
	vectors, info, err := c.next.Embed(ctx, sub)
	if err != nil {
		return nil, info, err
	}
	if len(vectors) != len(missInputs) {
		return nil, info, &Error{Provider: info.Name, Op: "embed", Type: ErrorPermanent, Err: fmt.Errorf("expected %d embeddings, got %d", len(missInputs), len(vectors))}
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		_ = c.cache.Set(ctx, keys[i], encodeVector(vectors[j]), c.ttl)
	}
	return out, info, nil
}

func embeddingKey(model string, dim int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", model, dim)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func encodeVector(v []float32) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(v)))
	_ = binary.Write(&buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func decodeVector(raw []byte) ([]float32, error) {
	r := bytes.NewReader(raw)
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read vector length: %w", err)
	}
	if int(n)*4 != r.Len() {
		return nil, fmt.Errorf("vector length %d does not match payload of %d bytes", n, r.Len())
	}
	v := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("read vector: %w", err)
	}
	return v, nil
}
