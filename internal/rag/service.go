package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"supportbot/internal/metrics"
	"supportbot/internal/models"
	"supportbot/internal/providers"
	"supportbot/internal/vector"
)

const (
	DefaultTemperature = 0.7
	DefaultRecentTurns = 5
)

type ServiceOptions struct {
	Dimension       int
	ProviderTimeout time.Duration
	TopK            int
	Temperature     float64
	RecentTurns     int
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	Auditor         CallAuditor
}

// Service answers tenant queries from the tenant's own corpus.
type Service struct {
	embed       embedCall
	llm         providers.LLMProvider
	repo        Repository
	tenants     TenantStore
	memory      MemoryStore
	timeout     time.Duration
	topK        int
	temperature float64
	recentTurns int
	log         *zap.Logger
	metrics     *metrics.Metrics
	auditor     CallAuditor
}

// NewService wires the query side. memory may be nil, in which case Answer
// runs without conversation history.
func NewService(embedder providers.EmbeddingProvider, llm providers.LLMProvider, repo Repository, tenants TenantStore, memory MemoryStore, opts ServiceOptions) *Service {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	if opts.TopK <= 0 {
		opts.TopK = vector.DefaultTopK
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.RecentTurns <= 0 {
		opts.RecentTurns = DefaultRecentTurns
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		embed: embedCall{
			provider: embedder,
			timeout:  opts.ProviderTimeout,
			dim:      opts.Dimension,
			metrics:  opts.Metrics,
			auditor:  opts.Auditor,
		},
		llm:         llm,
		repo:        repo,
		tenants:     tenants,
		memory:      memory,
		timeout:     opts.ProviderTimeout,
		topK:        opts.TopK,
		temperature: opts.Temperature,
		recentTurns: opts.RecentTurns,
		log:         opts.Logger.Named("rag"),
		metrics:     opts.Metrics,
		auditor:     opts.Auditor,
	}
}

// Retrieve ranks the tenant's chunks against query. Only chunks owned by
// tenantID are ever scored; an empty corpus yields an empty result.
func (s *Service) Retrieve(ctx context.Context, tenantID, query string, topK int) ([]models.RankedChunk, error) {
	started := time.Now()
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "query", Reason: "required"}
	}
	if _, err := s.activeTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	qvec, err := s.embed.one(ctx, tenantID, "query", query)
	if err != nil {
		return nil, err
	}
	chunks, err := s.repo.ListChunks(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	for _, c := range chunks {
		if c.TenantID != tenantID {
			return nil, &DataIntegrityError{Reason: fmt.Sprintf("chunk %s of document %s belongs to tenant %s", c.ChunkID, c.DocumentID, c.TenantID)}
		}
	}
	ranked, err := vector.Rank(qvec, chunks, topK)
	if err != nil {
		var dm *vector.DimensionMismatchError
		if errors.As(err, &dm) {
			return nil, &DataIntegrityError{Reason: "embedding dimension mismatch", Err: err}
		}
		return nil, fmt.Errorf("rank chunks: %w", err)
	}
	s.metrics.Retrieval(started, len(chunks))
	s.log.Debug("retrieved",
		zap.String("tenant_id", tenantID),
		zap.Int("scanned", len(chunks)),
		zap.Int("returned", len(ranked)))
	return ranked, nil
}

type GenerateInput struct {
	TenantID      string
	BusinessName  string
	CustomPrompt  string
	Query         string
	Context       string
	ClientSummary string
	RecentTurns   []models.Turn
}

// Generate issues exactly one chat-completion call. An empty Context is a
// valid input.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (string, error) {
	if strings.TrimSpace(in.Query) == "" {
		return "", &ValidationError{Field: "query", Reason: "required"}
	}
	system := BuildSystemPrompt(PromptInput{
		BusinessName:  in.BusinessName,
		CustomPrompt:  in.CustomPrompt,
		Context:       in.Context,
		ClientSummary: in.ClientSummary,
		RecentTurns:   in.RecentTurns,
	})
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, info, err := s.llm.Generate(callCtx, providers.GenerateRequest{
		Operation:   "answer",
		System:      system,
		User:        in.Query,
		Temperature: s.temperature,
	})
	s.metrics.ProviderCall(info.Name, "generate", err)
	audit(ctx, s.auditor, CallRecord{Operation: "generate_answer", TenantID: in.TenantID, Provider: info.Name, Model: info.Model}, err)
	if err != nil {
		return "", toProviderError("generate", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

type AnswerRequest struct {
	TenantID string
	Phone    string
	Name     string
	Message  string
}

type Answer struct {
	Text     string               `json:"answer"`
	ClientID string               `json:"client_id,omitempty"`
	Sources  []models.RankedChunk `json:"sources"`
}

// Answer runs one conversational turn: record the client message, retrieve,
// generate with history, record the reply and roll the client summary.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (Answer, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Answer{}, &ValidationError{Field: "message", Reason: "required"}
	}
	tenant, err := s.activeTenant(ctx, req.TenantID)
	if err != nil {
		return Answer{}, err
	}

	var client models.Client
	var turns []models.Turn
	if s.memory != nil {
		if strings.TrimSpace(req.Phone) == "" {
			return Answer{}, &ValidationError{Field: "phone", Reason: "required"}
		}
		client, err = s.memory.GetOrCreateClient(ctx, tenant.TenantID, req.Phone, req.Name)
		if err != nil {
			return Answer{}, fmt.Errorf("load client: %w", err)
		}
		if err := s.memory.AppendTurn(ctx, client.ClientID, models.SenderClient, req.Message); err != nil {
			return Answer{}, fmt.Errorf("record client message: %w", err)
		}
	}

	ranked, err := s.Retrieve(ctx, tenant.TenantID, req.Message, s.topK)
	if err != nil {
		return Answer{}, err
	}
	if s.memory != nil {
		turns, err = s.memory.RecentTurns(ctx, client.ClientID, s.recentTurns)
		if err != nil {
			return Answer{}, fmt.Errorf("load recent turns: %w", err)
		}
	}

	text, err := s.Generate(ctx, GenerateInput{
		TenantID:      tenant.TenantID,
		BusinessName:  tenant.Name,
		CustomPrompt:  tenant.CustomPrompt,
		Query:         req.Message,
		Context:       JoinContext(ranked),
		ClientSummary: client.Summary,
		RecentTurns:   turns,
	})
	if err != nil {
		return Answer{}, err
	}

	if s.memory != nil {
		if err := s.memory.AppendTurn(ctx, client.ClientID, models.SenderBot, text); err != nil {
			return Answer{}, fmt.Errorf("record bot reply: %w", err)
		}
		if err := s.memory.UpdateSummary(ctx, client.ClientID, SummarizeExchange(req.Message, text)); err != nil {
			s.log.Warn("update client summary", zap.String("client_id", client.ClientID), zap.Error(err))
		}
	}
	return Answer{Text: text, ClientID: client.ClientID, Sources: ranked}, nil
}

func (s *Service) ListDocuments(ctx context.Context, tenantID string) ([]models.DocumentSummary, error) {
	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListDocuments(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and all of its chunks and returns the
// removed document. A document owned by another tenant is reported as not
// found.
func (s *Service) DeleteDocument(ctx context.Context, tenantID, documentID string) (models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return models.Document{}, err
	}
	if doc.TenantID != tenantID {
		return models.Document{}, &NotFoundError{Kind: "document", ID: documentID}
	}
	if err := s.repo.DeleteDocument(ctx, documentID); err != nil {
		return models.Document{}, err
	}
	s.log.Info("document deleted", zap.String("tenant_id", tenantID), zap.String("document_id", documentID))
	return doc, nil
}

func (s *Service) activeTenant(ctx context.Context, tenantID string) (models.Tenant, error) {
	if tenantID == "" {
		return models.Tenant{}, &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return models.Tenant{}, err
	}
	if !t.Active {
		return models.Tenant{}, &NotFoundError{Kind: "tenant", ID: tenantID}
	}
	return t, nil
}
