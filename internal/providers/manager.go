package providers

import (
	"fmt"
	"strings"

	"supportbot/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
	// Model identifies the vector space the provider produces.
	Model string
}

// Manager owns the provider clients built from configuration. Callers get
// them injected; nothing here is process-global.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed, Model: embedModel(ref, cfg)})
	}
	return m, nil
}

// Embedder returns the preferred embedding provider. Real providers win over
// mock when both are configured.
func (m *Manager) Embedder() (EmbeddingProvider, ProviderRef) {
	p := m.preferredEmbedder()
	return p.Provider, p.Ref
}

// EmbedNamespace names the vector space of the preferred embedder, e.g.
// "ollama/nomic-embed-text". Cached vectors are keyed by it so a
// model change never serves vectors from the previous model.
func (m *Manager) EmbedNamespace() string {
	p := m.preferredEmbedder()
	return p.Ref.Raw + "/" + p.Model
}

func (m *Manager) preferredEmbedder() NamedEmbedProvider {
	order := preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
	if len(order) == 0 {
		return NamedEmbedProvider{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(0), Model: "mock"}
	}
	return m.embedProviders[order[0]]
}

// LLM returns the preferred chat-completion provider.
func (m *Manager) LLM() (LLMProvider, ProviderRef) {
	order := preferredOrder(len(m.llmProviders), func(i int) string { return strings.ToLower(m.llmProviders[i].Ref.Name) })
	if len(order) == 0 {
		return NewMockProvider(0), ProviderRef{Raw: "mock", Name: "mock"}
	}
	p := m.llmProviders[order[0]]
	return p.Provider, p.Ref
}

func (m *Manager) EmbedProviderRefs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.embedProviders))
	for i := range m.embedProviders {
		out = append(out, m.embedProviders[i].Ref)
	}
	return out
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, cfg config.Config) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(cfg.EmbedDim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, OpenAIOptions{
			BaseURL:    cfg.OpenAIBaseURL,
			EmbedModel: cfg.OpenAIEmbedModel,
			ChatModel:  cfg.OpenAIChatModel,
			Timeout:    cfg.ProviderTimeout,
		}), nil
	case "azure":
		return NewAzureOpenAIProvider(AzureOptions{
			Endpoint:        cfg.AzureEndpoint,
			APIKey:          cfg.AzureAPIKey,
			APIVersion:      cfg.AzureAPIVersion,
			EmbedDeployment: cfg.AzureEmbedDeployment,
			ChatDeployment:  cfg.AzureChatDeployment,
			Timeout:         cfg.ProviderTimeout,
		}), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(OllamaOptions{
			BaseURL: cfg.OllamaBaseURL,
			Model:   OllamaModel(ref.KeyAlias, cfg.OllamaEmbedModel),
			Timeout: cfg.ProviderTimeout,
		}), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias, cfg.ProviderTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}

func embedModel(ref ProviderRef, cfg config.Config) string {
	switch ref.Name {
	case "openai":
		return strings.TrimRight(cfg.OpenAIBaseURL, "/") + "/" + cfg.OpenAIEmbedModel
	case "azure":
		return strings.TrimRight(cfg.AzureEndpoint, "/") + "/" + cfg.AzureEmbedDeployment
	case "ollama":
		return OllamaModel(ref.KeyAlias, cfg.OllamaEmbedModel)
	default:
		return ref.Name
	}
}
