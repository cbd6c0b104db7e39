package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/config"
)

func TestManagerPrefersRealProviders(t *testing.T) {
	cfg := config.Load()
	cfg.EmbedProviders = "mock|azure"
	cfg.LLMProviders = "mock|openai:primary"
	m, err := NewManager(cfg)
	require.NoError(t, err)

	_, ref := m.Embedder()
	assert.Equal(t, "azure", ref.Name)
	_, ref = m.LLM()
	assert.Equal(t, "openai", ref.Name)
	assert.Equal(t, "primary", ref.KeyAlias)
}

func TestManagerRejectsEmbedOnlyProviderForLLM(t *testing.T) {
	cfg := config.Load()
	cfg.LLMProviders = "ollama"
	_, err := NewManager(cfg)
	require.Error(t, err)
}

func TestManagerUnknownProvider(t *testing.T) {
	cfg := config.Load()
	cfg.EmbedProviders = "cohere"
	_, err := NewManager(cfg)
	require.ErrorContains(t, err, "unsupported provider")
}

func TestManagerEmbedNamespaceFollowsModel(t *testing.T) {
	cfg := config.Load()
	cfg.EmbedProviders = "openai:prod"
	cfg.OpenAIEmbedModel = "text-embedding-3-small"
	small, err := NewManager(cfg)
	require.NoError(t, err)
	cfg.OpenAIEmbedModel = "text-embedding-3-large"
	large, err := NewManager(cfg)
	require.NoError(t, err)

	assert.Contains(t, small.EmbedNamespace(), "openai:prod/")
	assert.NotEqual(t, small.EmbedNamespace(), large.EmbedNamespace())

	cfg.EmbedProviders = "ollama"
	cfg.OllamaEmbedModel = "nomic-embed-text"
	a, err := NewManager(cfg)
	require.NoError(t, err)
	cfg.OllamaEmbedModel = "mxbai-embed-large"
	b, err := NewManager(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text", a.EmbedNamespace())
	assert.NotEqual(t, a.EmbedNamespace(), b.EmbedNamespace())
}
