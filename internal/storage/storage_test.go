package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/models"
	"supportbot/internal/rag"
)

var (
	_ rag.Repository  = (*DocumentRepo)(nil)
	_ rag.TenantStore = (*TenantRepo)(nil)
	_ rag.MemoryStore = (*ClientRepo)(nil)
	_ rag.CallAuditor = (*LLMAuditRepo)(nil)
)

func TestSchemaSQLFixesDimension(t *testing.T) {
	sql := SchemaSQL(768)
	assert.Contains(t, sql, "embedding   vector(768) NOT NULL")
	assert.NotContains(t, sql, "{{EMBED_DIM}}")
	assert.Contains(t, sql, "UNIQUE (tenant_id, content_hash)")
}

// The tests below need a Postgres with pgvector; set SUPPORTBOT_TEST_POSTGRES_URL.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("SUPPORTBOT_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("SUPPORTBOT_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx, 3))
	return db
}

func TestDocumentRepoRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tenants := NewTenantRepo(db)
	docs := NewDocumentRepo(db)

	tenant, err := tenants.CreateTenant(ctx, models.Tenant{Name: "Test", WhatsAppNumber: "+51" + strings.ReplaceAll(t.Name(), "/", "")})
	require.NoError(t, err)

	var docID string
	err = docs.WithinTx(ctx, func(w rag.DocumentWriter) error {
		id, err := w.SaveDocument(ctx, tenant.TenantID, "faq.pdf", "hash-"+tenant.TenantID)
		if err != nil {
			return err
		}
		docID = id
		for i, text := range []string{"uno", "dos"} {
			if err := w.SaveChunk(ctx, id, i, text, []float32{float32(i), 1, 0}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	chunks, err := docs.ListChunks(ctx, tenant.TenantID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "uno", chunks[0].Text)
	assert.Equal(t, []float32{1, 1, 0}, chunks[1].Embedding)
	assert.Equal(t, tenant.TenantID, chunks[0].TenantID)

	err = docs.WithinTx(ctx, func(w rag.DocumentWriter) error {
		_, err := w.SaveDocument(ctx, tenant.TenantID, "copy.pdf", "hash-"+tenant.TenantID)
		return err
	})
	assert.True(t, errors.Is(err, rag.ErrDuplicateDocument))

	require.NoError(t, docs.DeleteDocument(ctx, docID))
	chunks, err = docs.ListChunks(ctx, tenant.TenantID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.True(t, errors.Is(docs.DeleteDocument(ctx, docID), rag.ErrNotFound))
}

func TestDocumentRepoRejectsWrongDimension(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tenant, err := NewTenantRepo(db).CreateTenant(ctx, models.Tenant{Name: "Dim", WhatsAppNumber: "+51dim-" + t.Name()})
	require.NoError(t, err)
	docs := NewDocumentRepo(db)
	err = docs.WithinTx(ctx, func(w rag.DocumentWriter) error {
		id, err := w.SaveDocument(ctx, tenant.TenantID, "x.pdf", "dim-hash")
		if err != nil {
			return err
		}
		return w.SaveChunk(ctx, id, 0, "x", []float32{1, 2})
	})
	require.Error(t, err)
	_, found, err := docs.FindDocumentByHash(ctx, tenant.TenantID, "dim-hash")
	require.NoError(t, err)
	assert.False(t, found, "failed transaction must not leave the document behind")
}

func TestTenantRepoNotFound(t *testing.T) {
	db := testDB(t)
	_, err := NewTenantRepo(db).GetTenant(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, rag.ErrNotFound))
}
