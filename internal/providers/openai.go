package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenAIProvider uses standard OpenAI REST APIs when keys are configured.
type OpenAIProvider struct {
	keyName    string
	apiKey     string
	baseURL    string
	embedModel string
	chatModel  string
	client     *http.Client
}

type OpenAIOptions struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
	Timeout    time.Duration
}

func NewOpenAIProvider(keyName string, opts OpenAIOptions) *OpenAIProvider {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = "text-embedding-3-small"
	}
	if opts.ChatModel == "" {
		opts.ChatModel = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		keyName:    keyName,
		apiKey:     resolveOpenAIKey(keyName),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		embedModel: opts.EmbedModel,
		chatModel:  opts.ChatModel,
		client:     &http.Client{Timeout: opts.Timeout},
	}
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.embedModel, Key: o.keyName}
	if o.apiKey == "" {
		return nil, info, &Error{Provider: "openai", Op: "embed", Type: ErrorAuth, Err: fmt.Errorf("openai key missing for alias %q", o.keyName)}
	}
	body := map[string]any{"model": o.embedModel, "input": req.Inputs}
	// Only the text-embedding-3 family accepts a dimensions override.
	if req.Dimension > 0 && strings.HasPrefix(o.embedModel, "text-embedding-3") {
		body["dimensions"] = req.Dimension
	}
	payload, _ := json.Marshal(body)
	raw, err := o.post(ctx, "embed", o.baseURL+"/embeddings", payload, map[string]string{"Authorization": "Bearer " + o.apiKey})
	if err != nil {
		return nil, info, err
	}
	vectors, err := decodeEmbeddings("openai", raw, len(req.Inputs))
	return vectors, info, err
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.chatModel, Key: o.keyName}
	if o.apiKey == "" {
		return GenerateResponse{}, info, &Error{Provider: "openai", Op: "generate", Type: ErrorAuth, Err: fmt.Errorf("openai key missing for alias %q", o.keyName)}
	}
	payload, _ := json.Marshal(chatPayload(o.chatModel, req))
	raw, err := o.post(ctx, "generate", o.baseURL+"/chat/completions", payload, map[string]string{"Authorization": "Bearer " + o.apiKey})
	if err != nil {
		return GenerateResponse{}, info, err
	}
	text, err := decodeChat("openai", raw)
	return GenerateResponse{Text: text}, info, err
}

func (o *OpenAIProvider) post(ctx context.Context, op, url string, payload []byte, headers map[string]string) ([]byte, error) {
	return doJSON(ctx, o.client, "openai", op, url, payload, headers)
}

func doJSON(ctx context.Context, client *http.Client, provider, op, url string, payload []byte, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Provider: provider, Op: op, Type: ErrorPermanent, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, requestError(provider, op, fmt.Errorf("%s %s request failed: %w", provider, op, err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestError(provider, op, fmt.Errorf("read %s response: %w", provider, err))
	}
	if resp.StatusCode >= 400 {
		return nil, statusError(provider, op, resp.StatusCode, body)
	}
	return body, nil
}

func chatPayload(model string, req GenerateRequest) map[string]any {
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.User})
	body := map[string]any{
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if model != "" {
		body["model"] = model
	}
	return body
}

func decodeEmbeddings(provider string, raw []byte, want int) ([][]float32, error) {
	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &Error{Provider: provider, Op: "embed", Type: ErrorPermanent, Err: fmt.Errorf("decode embedding response: %w", err)}
	}
	if len(parsed.Data) != want {
		return nil, &Error{Provider: provider, Op: "embed", Type: ErrorPermanent, Err: fmt.Errorf("expected %d embeddings, got %d", want, len(parsed.Data))}
	}
	out := make([][]float32, want)
	for i, d := range parsed.Data {
		idx := d.Index
		if idx < 0 || idx >= want || out[idx] != nil {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

func decodeChat(provider string, raw []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &Error{Provider: provider, Op: "generate", Type: ErrorPermanent, Err: fmt.Errorf("decode generate response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Provider: provider, Op: "generate", Type: ErrorPermanent, Err: errors.New("empty choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		k := os.Getenv("SUPPORTBOT_OPENAI_KEY_" + strings.ToUpper(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}
