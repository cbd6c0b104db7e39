package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaModel(t *testing.T) {
	assert.Equal(t, "nomic-embed-text", OllamaModel("", "nomic-embed-text"))
	assert.Equal(t, "bge-m3", OllamaModel("BGE", "x"))
	assert.Equal(t, "all-minilm:l6-v2", OllamaModel("all-minilm:l6-v2", "x"))
}

func TestOllamaEmbedSendsOneBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/embed", r.URL.Path)
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic-embed-text", body.Model)
		assert.Equal(t, []string{"a", "b"}, body.Input)
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 0, 1}, {1, 0, 2}}})
	}))
	defer srv.Close()

	p := NewOllamaEmbeddingProvider(OllamaOptions{BaseURL: srv.URL, Timeout: time.Second})
	vecs, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "ollama", info.Name)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(2), vecs[1][2])
	assert.Equal(t, 1, calls)
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1}}})
	}))
	defer srv.Close()

	p := NewOllamaEmbeddingProvider(OllamaOptions{BaseURL: srv.URL})
	_, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}})
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Retryable())
}
