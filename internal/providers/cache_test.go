package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type countingEmbedder struct {
	inputs []string
	err    error
}

func (c *countingEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	c.inputs = append(c.inputs, req.Inputs...)
	if c.err != nil {
		return nil, ProviderInfo{Name: "counting"}, c.err
	}
	return NewMockProvider(4).Embed(ctx, req)
}

func TestCachedEmbedderOnlySendsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, &memoryCache{data: map[string][]byte{}}, "mock", time.Hour)

	first, _, err := c.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}, Dimension: 4})
	require.NoError(t, err)
	second, _, err := c.Embed(context.Background(), EmbedRequest{Inputs: []string{"b", "c", "a"}, Dimension: 4})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, inner.inputs)
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, first[1], second[0])
}

func TestCachedEmbedderKeysByDimension(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, &memoryCache{data: map[string][]byte{}}, "mock", time.Hour)
	_, _, err := c.Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}, Dimension: 4})
	require.NoError(t, err)
	_, _, err = c.Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}, Dimension: 8})
	require.NoError(t, err)
	assert.Len(t, inner.inputs, 2)
}

type constEmbedder struct{ value float32 }

func (c constEmbedder) Embed(_ context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	out := make([][]float32, len(req.Inputs))
	for i := range out {
		out[i] = []float32{c.value, c.value, c.value, c.value}
	}
	return out, ProviderInfo{Name: "const"}, nil
}

func TestCachedEmbedderSeparatesModels(t *testing.T) {
	shared := &memoryCache{data: map[string][]byte{}}
	small := NewCachedEmbedder(constEmbedder{value: 1}, shared, "openai:prod/text-embedding-3-small", time.Hour)
	large := NewCachedEmbedder(constEmbedder{value: 2}, shared, "openai:prod/text-embedding-3-large", time.Hour)

	a, _, err := small.Embed(context.Background(), EmbedRequest{Inputs: []string{"horario"}, Dimension: 4})
	require.NoError(t, err)
	b, _, err := large.Embed(context.Background(), EmbedRequest{Inputs: []string{"horario"}, Dimension: 4})
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 1, 1, 1}, a[0])
	assert.Equal(t, []float32{2, 2, 2, 2}, b[0])
	assert.Len(t, shared.data, 2)
}

func TestCachedEmbedderPropagatesProviderError(t *testing.T) {
	inner := &countingEmbedder{err: &Error{Provider: "counting", Op: "embed", Type: ErrorRate, Err: errors.New("slow down")}}
	c := NewCachedEmbedder(inner, &memoryCache{data: map[string][]byte{}}, "mock", time.Hour)
	_, _, err := c.Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	v := []float32{0.25, -1, 3.5}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 0, 0, 0})
	assert.Error(t, err)
}
