package models

import "time"

type Tenant struct {
	TenantID       string    `json:"tenant_id"`
	Name           string    `json:"name"`
	WhatsAppNumber string    `json:"whatsapp_number"`
	CustomPrompt   string    `json:"custom_prompt,omitempty"`
	OwnerNumber    string    `json:"owner_number,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type Document struct {
	DocumentID  string    `json:"document_id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentSummary is a Document plus the number of chunks it owns.
type DocumentSummary struct {
	Document
	ChunkCount int `json:"chunk_count"`
}

type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// StoredChunk is the row shape returned when listing a tenant's corpus.
type StoredChunk struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	TenantID     string    `json:"tenant_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"-"`
}

type RankedChunk struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
}

type Sender string

const (
	SenderClient  Sender = "client"
	SenderBot     Sender = "bot"
	SenderAdvisor Sender = "advisor"
)

type Client struct {
	ClientID        string        `json:"client_id"`
	TenantID        string        `json:"tenant_id"`
	Phone           string        `json:"phone"`
	Name            string        `json:"name,omitempty"`
	Summary         string        `json:"summary,omitempty"`
	Profile         ClientProfile `json:"profile"`
	LastInteraction *time.Time    `json:"last_interaction,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ClientProfile holds the known structured fields collected about a client.
// Anything else lands in Extra.
type ClientProfile struct {
	ProductInterest string         `json:"product_interest,omitempty"`
	ClientType      string         `json:"client_type,omitempty"`
	LastReceipt     *ReceiptInfo   `json:"last_receipt,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

type ReceiptInfo struct {
	Received   bool      `json:"received"`
	ReceivedAt time.Time `json:"received_at"`
	MIMEType   string    `json:"mime_type,omitempty"`
}

type Turn struct {
	Sender    Sender    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CallStat counts audited provider calls by operation, provider and outcome.
type CallStat struct {
	Operation string `json:"operation"`
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	Count     int    `json:"count"`
}
