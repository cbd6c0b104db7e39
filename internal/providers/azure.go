package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AzureOpenAIProvider talks to an Azure OpenAI resource, where models are
// addressed by deployment name rather than model id.
type AzureOpenAIProvider struct {
	endpoint        string
	apiKey          string
	apiVersion      string
	embedDeployment string
	chatDeployment  string
	client          *http.Client
}

type AzureOptions struct {
	Endpoint        string
	APIKey          string
	APIVersion      string
	EmbedDeployment string
	ChatDeployment  string
	Timeout         time.Duration
}

func NewAzureOpenAIProvider(opts AzureOptions) *AzureOpenAIProvider {
	if opts.APIVersion == "" {
		opts.APIVersion = "2024-08-01-preview"
	}
	if opts.EmbedDeployment == "" {
		opts.EmbedDeployment = "text-embedding-ada-002"
	}
	if opts.ChatDeployment == "" {
		opts.ChatDeployment = "gpt-4o"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &AzureOpenAIProvider{
		endpoint:        strings.TrimRight(opts.Endpoint, "/"),
		apiKey:          opts.APIKey,
		apiVersion:      opts.APIVersion,
		embedDeployment: opts.EmbedDeployment,
		chatDeployment:  opts.ChatDeployment,
		client:          &http.Client{Timeout: opts.Timeout},
	}
}

func (a *AzureOpenAIProvider) deploymentURL(deployment, path string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		a.endpoint, url.PathEscape(deployment), path, url.QueryEscape(a.apiVersion))
}

func (a *AzureOpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "azure", Model: a.embedDeployment}
	if err := a.ready("embed"); err != nil {
		return nil, info, err
	}
	payload, _ := json.Marshal(map[string]any{"input": req.Inputs})
	raw, err := doJSON(ctx, a.client, "azure", "embed", a.deploymentURL(a.embedDeployment, "embeddings"), payload, map[string]string{"api-key": a.apiKey})
	if err != nil {
		return nil, info, err
	}
	vectors, err := decodeEmbeddings("azure", raw, len(req.Inputs))
	return vectors, info, err
}

func (a *AzureOpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "azure", Model: a.chatDeployment}
	if err := a.ready("generate"); err != nil {
		return GenerateResponse{}, info, err
	}
	payload, _ := json.Marshal(chatPayload("", req))
	raw, err := doJSON(ctx, a.client, "azure", "generate", a.deploymentURL(a.chatDeployment, "chat/completions"), payload, map[string]string{"api-key": a.apiKey})
	if err != nil {
		return GenerateResponse{}, info, err
	}
	text, err := decodeChat("azure", raw)
	return GenerateResponse{Text: text}, info, err
}

func (a *AzureOpenAIProvider) ready(op string) error {
	if a.endpoint == "" || a.apiKey == "" {
		return &Error{Provider: "azure", Op: op, Type: ErrorAuth, Err: fmt.Errorf("azure endpoint or key missing")}
	}
	return nil
}
