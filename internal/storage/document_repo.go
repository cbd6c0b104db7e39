package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"supportbot/internal/models"
	"supportbot/internal/rag"
	"supportbot/internal/util"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

type txWriter struct {
	tx pgx.Tx
}

func (w txWriter) SaveDocument(ctx context.Context, tenantID, name, contentHash string) (string, error) {
	var id string
	err := w.tx.QueryRow(ctx, `
INSERT INTO documents (tenant_id, name, content_hash)
VALUES ($1::uuid, $2, $3)
RETURNING document_id::text`, tenantID, util.SanitizeText(name), contentHash).Scan(&id)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("insert document: %w", rag.ErrDuplicateDocument)
	}
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (w txWriter) SaveChunk(ctx context.Context, documentID string, index int, text string, embedding []float32) error {
	_, err := w.tx.Exec(ctx, `
INSERT INTO chunks (document_id, chunk_index, text, embedding)
VALUES ($1::uuid, $2, $3, $4)`, documentID, index, util.SanitizeText(text), pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("insert chunk %d: %w", index, err)
	}
	return nil
}

// WithinTx runs fn inside one transaction and rolls back on any error.
func (r *DocumentRepo) WithinTx(ctx context.Context, fn func(w rag.DocumentWriter) error) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(txWriter{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListChunks returns every chunk of the tenant's documents in a fixed order:
// oldest document first, then chunk index.
func (r *DocumentRepo) ListChunks(ctx context.Context, tenantID string) ([]models.StoredChunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT c.chunk_id::text, c.document_id::text, d.name, d.tenant_id::text, c.chunk_index, c.text, c.embedding
FROM chunks c
JOIN documents d ON d.document_id = c.document_id
WHERE d.tenant_id = $1::uuid
ORDER BY d.created_at, d.document_id, c.chunk_index`, tenantID)
	if err != nil {
		if isInvalidUUID(err) {
			return []models.StoredChunk{}, nil
		}
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	out := make([]models.StoredChunk, 0, 128)
	for rows.Next() {
		var c models.StoredChunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.DocumentName, &c.TenantID, &c.ChunkIndex, &c.Text, &vec); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding = vec.Slice()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id::text, tenant_id::text, name, content_hash, created_at
FROM documents WHERE document_id = $1::uuid`, documentID).
		Scan(&d.DocumentID, &d.TenantID, &d.Name, &d.ContentHash, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return models.Document{}, &rag.NotFoundError{Kind: "document", ID: documentID}
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context, tenantID string) ([]models.DocumentSummary, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT d.document_id::text, d.tenant_id::text, d.name, d.content_hash, d.created_at, COUNT(c.chunk_id)
FROM documents d
LEFT JOIN chunks c ON c.document_id = d.document_id
WHERE d.tenant_id = $1::uuid
GROUP BY d.document_id
ORDER BY d.created_at, d.document_id`, tenantID)
	if err != nil {
		if isInvalidUUID(err) {
			return []models.DocumentSummary{}, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	out := make([]models.DocumentSummary, 0, 16)
	for rows.Next() {
		var s models.DocumentSummary
		if err := rows.Scan(&s.DocumentID, &s.TenantID, &s.Name, &s.ContentHash, &s.CreatedAt, &s.ChunkCount); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) FindDocumentByHash(ctx context.Context, tenantID, contentHash string) (models.DocumentSummary, bool, error) {
	var s models.DocumentSummary
	err := r.db.Pool.QueryRow(ctx, `
SELECT d.document_id::text, d.tenant_id::text, d.name, d.content_hash, d.created_at,
       (SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.document_id)
FROM documents d
WHERE d.tenant_id = $1::uuid AND d.content_hash = $2`, tenantID, contentHash).
		Scan(&s.DocumentID, &s.TenantID, &s.Name, &s.ContentHash, &s.CreatedAt, &s.ChunkCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DocumentSummary{}, false, nil
	}
	if err != nil {
		return models.DocumentSummary{}, false, fmt.Errorf("find document by hash: %w", err)
	}
	return s, true, nil
}

// DeleteDocument removes the chunks and then the document in one
// transaction.
func (r *DocumentRepo) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx delete document: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1::uuid`, documentID); err != nil {
		if isInvalidUUID(err) {
			return &rag.NotFoundError{Kind: "document", ID: documentID}
		}
		return fmt.Errorf("delete chunks: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE document_id = $1::uuid`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &rag.NotFoundError{Kind: "document", ID: documentID}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete document: %w", err)
	}
	return nil
}
