package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// GroqProvider supports LLM generation via Groq's OpenAI-compatible API.
type GroqProvider struct {
	keyName string
	apiKey  string
	model   string
	client  *http.Client
}

func NewGroqProvider(keyName string, timeout time.Duration) *GroqProvider {
	model := os.Getenv("SUPPORTBOT_GROQ_MODEL")
	if strings.TrimSpace(model) == "" {
		model = "llama-3.1-8b-instant"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GroqProvider{
		keyName: keyName,
		apiKey:  resolveGroqKey(keyName),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "groq", Key: g.keyName, Model: g.model}
	if g.apiKey == "" {
		return GenerateResponse{}, info, &Error{Provider: "groq", Op: "generate", Type: ErrorAuth, Err: fmt.Errorf("groq key missing for alias %q", g.keyName)}
	}
	payload, _ := json.Marshal(chatPayload(g.model, req))
	raw, err := doJSON(ctx, g.client, "groq", "generate", "https://api.groq.com/openai/v1/chat/completions", payload, map[string]string{"Authorization": "Bearer " + g.apiKey})
	if err != nil {
		return GenerateResponse{}, info, err
	}
	text, err := decodeChat("groq", raw)
	return GenerateResponse{Text: text}, info, err
}

func resolveGroqKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("SUPPORTBOT_GROQ_KEY_" + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GROQ_API_KEY")
}
