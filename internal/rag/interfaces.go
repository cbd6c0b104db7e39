package rag

import (
	"context"
	"errors"

	"supportbot/internal/models"
)

// ErrDuplicateDocument is returned by DocumentWriter.SaveDocument when the
// tenant already owns a document with the same content hash.
var ErrDuplicateDocument = errors.New("duplicate document")

// ErrTenantExists is returned when a WhatsApp number is already registered.
var ErrTenantExists = errors.New("tenant already registered for this whatsapp number")

// DocumentWriter is the write side of one ingestion transaction.
type DocumentWriter interface {
	SaveDocument(ctx context.Context, tenantID, name, contentHash string) (string, error)
	SaveChunk(ctx context.Context, documentID string, index int, text string, embedding []float32) error
}

// Repository persists documents and chunks. WithinTx commits only when fn
// returns nil.
type Repository interface {
	WithinTx(ctx context.Context, fn func(w DocumentWriter) error) error
	ListChunks(ctx context.Context, tenantID string) ([]models.StoredChunk, error)
	GetDocument(ctx context.Context, documentID string) (models.Document, error)
	ListDocuments(ctx context.Context, tenantID string) ([]models.DocumentSummary, error)
	FindDocumentByHash(ctx context.Context, tenantID, contentHash string) (models.DocumentSummary, bool, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

type TenantStore interface {
	GetTenant(ctx context.Context, tenantID string) (models.Tenant, error)
}

// MemoryStore holds per-client conversation state.
type MemoryStore interface {
	GetOrCreateClient(ctx context.Context, tenantID, phone, name string) (models.Client, error)
	RecentTurns(ctx context.Context, clientID string, n int) ([]models.Turn, error)
	AppendTurn(ctx context.Context, clientID string, sender models.Sender, message string) error
	UpdateSummary(ctx context.Context, clientID, summary string) error
}

// CallRecord describes one provider call for auditing.
type CallRecord struct {
	Operation  string
	TenantID   string
	DocumentID string
	Provider   string
	Model      string
	Status     string
	ErrorType  string
}

type CallAuditor interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}
