// Package ragtest provides an in-memory implementation of the rag storage
// interfaces for tests and local runs without Postgres.
package ragtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"supportbot/internal/models"
	"supportbot/internal/rag"
)

type Store struct {
	mu      sync.Mutex
	clock   func() time.Time
	tenants map[string]models.Tenant
	docs    []models.Document
	chunks  map[string][]models.Chunk
	clients map[string]*models.Client
	turns   map[string][]models.Turn
	calls   []rag.CallRecord

	// FailChunkAt makes SaveChunk fail for that chunk index when >= 0.
	FailChunkAt int
}

func NewStore() *Store {
	return &Store{
		clock:       time.Now,
		tenants:     map[string]models.Tenant{},
		chunks:      map[string][]models.Chunk{},
		clients:     map[string]*models.Client{},
		turns:       map[string][]models.Turn{},
		FailChunkAt: -1,
	}
}

// AddTenant registers an active tenant and returns it.
func (s *Store) AddTenant(name string) models.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := models.Tenant{TenantID: uuid.NewString(), Name: name, Active: true, CreatedAt: s.clock()}
	s.tenants[t.TenantID] = t
	return t
}

// CreateTenant mirrors the Postgres registry: name and number are required
// and numbers are unique.
func (s *Store) CreateTenant(_ context.Context, t models.Tenant) (models.Tenant, error) {
	if t.Name == "" {
		return models.Tenant{}, &rag.ValidationError{Field: "name", Reason: "required"}
	}
	if t.WhatsAppNumber == "" {
		return models.Tenant{}, &rag.ValidationError{Field: "whatsapp_number", Reason: "required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if existing.WhatsAppNumber == t.WhatsAppNumber {
			return models.Tenant{}, rag.ErrTenantExists
		}
	}
	t.TenantID = uuid.NewString()
	t.Active = true
	t.CreatedAt = s.clock()
	s.tenants[t.TenantID] = t
	return t, nil
}

func (s *Store) GetTenantByWhatsApp(_ context.Context, number string) (models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.WhatsAppNumber == number && t.Active {
			return t, nil
		}
	}
	return models.Tenant{}, &rag.NotFoundError{Kind: "tenant", ID: number}
}

func (s *Store) SetActive(_ context.Context, tenantID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return &rag.NotFoundError{Kind: "tenant", ID: tenantID}
	}
	t.Active = active
	s.tenants[tenantID] = t
	return nil
}

func (s *Store) PutTenant(t models.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.TenantID] = t
}

func (s *Store) GetTenant(_ context.Context, tenantID string) (models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return models.Tenant{}, &rag.NotFoundError{Kind: "tenant", ID: tenantID}
	}
	return t, nil
}

type txWriter struct {
	s      *Store
	docs   []models.Document
	chunks map[string][]models.Chunk
}

func (w *txWriter) SaveDocument(_ context.Context, tenantID, name, contentHash string) (string, error) {
	for _, docs := range [][]models.Document{w.s.docs, w.docs} {
		for _, d := range docs {
			if d.TenantID == tenantID && d.ContentHash == contentHash {
				return "", fmt.Errorf("insert document: %w", rag.ErrDuplicateDocument)
			}
		}
	}
	d := models.Document{DocumentID: uuid.NewString(), TenantID: tenantID, Name: name, ContentHash: contentHash, CreatedAt: w.s.clock()}
	w.docs = append(w.docs, d)
	return d.DocumentID, nil
}

func (w *txWriter) SaveChunk(_ context.Context, documentID string, index int, text string, embedding []float32) error {
	if w.s.FailChunkAt >= 0 && index == w.s.FailChunkAt {
		return fmt.Errorf("insert chunk %d: simulated failure", index)
	}
	found := false
	for _, d := range w.docs {
		if d.DocumentID == documentID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("insert chunk: document %s not in transaction", documentID)
	}
	w.chunks[documentID] = append(w.chunks[documentID], models.Chunk{
		ChunkID:    uuid.NewString(),
		DocumentID: documentID,
		ChunkIndex: index,
		Text:       text,
		Embedding:  append([]float32(nil), embedding...),
	})
	return nil
}

// WithinTx holds the store lock for the whole transaction and applies the
// buffered writes only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(w rag.DocumentWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &txWriter{s: s, chunks: map[string][]models.Chunk{}}
	if err := fn(w); err != nil {
		return err
	}
	s.docs = append(s.docs, w.docs...)
	for id, cs := range w.chunks {
		s.chunks[id] = append(s.chunks[id], cs...)
	}
	return nil
}

func (s *Store) ListChunks(_ context.Context, tenantID string) ([]models.StoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StoredChunk, 0)
	for _, d := range s.docs {
		if d.TenantID != tenantID {
			continue
		}
		cs := append([]models.Chunk(nil), s.chunks[d.DocumentID]...)
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].ChunkIndex < cs[j].ChunkIndex })
		for _, c := range cs {
			out = append(out, models.StoredChunk{
				ChunkID:      c.ChunkID,
				DocumentID:   d.DocumentID,
				DocumentName: d.Name,
				TenantID:     d.TenantID,
				ChunkIndex:   c.ChunkIndex,
				Text:         c.Text,
				Embedding:    c.Embedding,
			})
		}
	}
	return out, nil
}

func (s *Store) GetDocument(_ context.Context, documentID string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.DocumentID == documentID {
			return d, nil
		}
	}
	return models.Document{}, &rag.NotFoundError{Kind: "document", ID: documentID}
}

func (s *Store) ListDocuments(_ context.Context, tenantID string) ([]models.DocumentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DocumentSummary, 0)
	for _, d := range s.docs {
		if d.TenantID == tenantID {
			out = append(out, models.DocumentSummary{Document: d, ChunkCount: len(s.chunks[d.DocumentID])})
		}
	}
	return out, nil
}

func (s *Store) FindDocumentByHash(_ context.Context, tenantID, contentHash string) (models.DocumentSummary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.TenantID == tenantID && d.ContentHash == contentHash {
			return models.DocumentSummary{Document: d, ChunkCount: len(s.chunks[d.DocumentID])}, true, nil
		}
	}
	return models.DocumentSummary{}, false, nil
}

func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.docs {
		if d.DocumentID == documentID {
			delete(s.chunks, documentID)
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return nil
		}
	}
	return &rag.NotFoundError{Kind: "document", ID: documentID}
}

// ChunkCount returns the number of stored chunks across all tenants.
func (s *Store) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, cs := range s.chunks {
		n += len(cs)
	}
	return n
}

func (s *Store) DocumentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *Store) GetOrCreateClient(_ context.Context, tenantID, phone, name string) (models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "|" + phone
	if c, ok := s.clients[key]; ok {
		return *c, nil
	}
	c := &models.Client{ClientID: uuid.NewString(), TenantID: tenantID, Phone: phone, Name: name, CreatedAt: s.clock()}
	s.clients[key] = c
	return *c, nil
}

func (s *Store) RecentTurns(_ context.Context, clientID string, n int) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.turns[clientID]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]models.Turn(nil), all...), nil
}

func (s *Store) AppendTurn(_ context.Context, clientID string, sender models.Sender, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[clientID] = append(s.turns[clientID], models.Turn{Sender: sender, Message: message, CreatedAt: s.clock()})
	return nil
}

func (s *Store) UpdateSummary(_ context.Context, clientID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.ClientID == clientID {
			c.Summary = summary
			now := s.clock()
			c.LastInteraction = &now
			return nil
		}
	}
	return &rag.NotFoundError{Kind: "client", ID: clientID}
}

func (s *Store) UpdateProfile(_ context.Context, clientID string, fn func(p *models.ClientProfile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.ClientID == clientID {
			fn(&c.Profile)
			return nil
		}
	}
	return &rag.NotFoundError{Kind: "client", ID: clientID}
}

func (s *Store) Turns(clientID string) []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.turns[clientID]...)
}

func (s *Store) RecordCall(_ context.Context, rec rag.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rec)
	return nil
}

func (s *Store) Calls() []rag.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rag.CallRecord(nil), s.calls...)
}

// CallStats aggregates recorded calls the way the audit table query does.
func (s *Store) CallStats(_ context.Context, tenantID string) ([]models.CallStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := map[[3]string]int{}
	out := make([]models.CallStat, 0)
	for _, c := range s.calls {
		if c.TenantID != tenantID {
			continue
		}
		k := [3]string{c.Operation, c.Provider, c.Status}
		if i, ok := idx[k]; ok {
			out[i].Count++
			continue
		}
		idx[k] = len(out)
		out = append(out, models.CallStat{Operation: c.Operation, Provider: c.Provider, Status: c.Status, Count: 1})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Operation != b.Operation {
			return a.Operation < b.Operation
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.Status < b.Status
	})
	return out, nil
}
