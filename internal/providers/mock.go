package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MockProvider produces deterministic embeddings and canned answers so the
// whole pipeline runs without network access.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ProviderInfo{Name: "mock"}, requestError("mock", "embed", err)
	}
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, info, requestError("mock", "generate", err)
	}
	text := "Mock response."
	if q := strings.TrimSpace(req.User); q != "" {
		text = "Mock answer for: " + q
	}
	return GenerateResponse{Text: text}, info, nil
}

// deterministicVector expands sha256(input || block) into dim values in
// [-1, 1) and scales the result to unit length.
func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	buf := make([]byte, len(input)+4)
	copy(buf, input)
	var sum float64
	for block := 0; block*8 < dim; block++ {
		binary.BigEndian.PutUint32(buf[len(input):], uint32(block))
		h := sha256.Sum256(buf)
		for j := 0; j < 8 && block*8+j < dim; j++ {
			u := binary.BigEndian.Uint32(h[j*4:])
			x := float64(u)/float64(1<<31) - 1
			vec[block*8+j] = float32(x)
			sum += x * x
		}
	}
	if sum == 0 {
		return vec
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
	return vec
}
