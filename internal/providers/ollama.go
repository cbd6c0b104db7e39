package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OllamaOptions struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaEmbeddingProvider embeds through a local Ollama server. Each call
// sends the whole batch to /api/embed.
type OllamaEmbeddingProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaEmbeddingProvider(opts OllamaOptions) *OllamaEmbeddingProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	if opts.Model == "" {
		opts.Model = "nomic-embed-text"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	return &OllamaEmbeddingProvider{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model, Key: "local"}
	if len(req.Inputs) == 0 {
		return nil, info, &Error{Provider: "ollama", Op: "embed", Type: ErrorPermanent, Err: fmt.Errorf("no embedding inputs")}
	}
	payload, _ := json.Marshal(map[string]any{
		"model": o.model,
		"input": req.Inputs,
	})
	body, err := doJSON(ctx, o.client, "ollama", "embed", o.baseURL+"/api/embed", payload, nil)
	if err != nil {
		return nil, info, err
	}
	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, info, &Error{Provider: "ollama", Op: "embed", Type: ErrorPermanent, Err: fmt.Errorf("decode ollama embedding response: %w", err)}
	}
	if len(parsed.Embeddings) != len(req.Inputs) {
		return nil, info, &Error{Provider: "ollama", Op: "embed", Type: ErrorPermanent,
			Err: fmt.Errorf("expected %d embeddings, got %d", len(req.Inputs), len(parsed.Embeddings))}
	}
	return parsed.Embeddings, info, nil
}

// OllamaModel maps the alias in "ollama:<alias>" to a model name. Short
// aliases are expanded; anything that already looks like a model tag is
// used as is.
func OllamaModel(alias, fallback string) string {
	switch a := strings.TrimSpace(alias); strings.ToLower(a) {
	case "":
		return fallback
	case "nomic":
		return "nomic-embed-text"
	case "bge":
		return "bge-m3"
	case "mxbai":
		return "mxbai-embed-large"
	default:
		return a
	}
}
