package activities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"supportbot/internal/blob"
	"supportbot/internal/rag"
)

type ingestFunc func(ctx context.Context, req rag.IngestRequest) (rag.IngestResult, error)

func (f ingestFunc) Ingest(ctx context.Context, req rag.IngestRequest) (rag.IngestResult, error) {
	return f(ctx, req)
}

func newEnv(t *testing.T, ing Ingester) (*testsuite.TestActivityEnvironment, *Activities, blob.Store) {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	a := New(ing, store, nil)
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a)
	return env, a, store
}

func TestIngestDocumentActivityPassesBlobBytes(t *testing.T) {
	var got rag.IngestRequest
	env, a, store := newEnv(t, ingestFunc(func(_ context.Context, req rag.IngestRequest) (rag.IngestResult, error) {
		got = req
		return rag.IngestResult{DocumentID: "d1", Name: req.Filename, ChunkCount: 2}, nil
	}))
	require.NoError(t, store.Put(context.Background(), "t1/abc.pdf", []byte("%PDF")))

	val, err := env.ExecuteActivity(a.IngestDocumentActivity, IngestDocumentInput{TenantID: "t1", Filename: "menu.pdf", BlobKey: "t1/abc.pdf"})
	require.NoError(t, err)
	var res rag.IngestResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "d1", res.DocumentID)
	assert.Equal(t, 2, res.ChunkCount)
	assert.Equal(t, "t1", got.TenantID)
	assert.Equal(t, "%PDF", string(got.Data))
}

func TestIngestDocumentActivityClassifiesErrors(t *testing.T) {
	cases := []struct {
		name         string
		err          error
		wantType     string
		nonRetryable bool
	}{
		{"validation", &rag.ValidationError{Field: "file", Reason: "empty upload"}, "ValidationError", true},
		{"not found", &rag.NotFoundError{Kind: "tenant", ID: "t1"}, "NotFoundError", true},
		{"integrity", &rag.DataIntegrityError{Reason: "dimension"}, "DataIntegrityError", true},
		{"permanent provider", &rag.ProviderError{Op: "embed", Err: errors.New("401")}, "ProviderError", true},
		{"transient provider", &rag.ProviderError{Op: "embed", Retryable: true, Err: errors.New("429")}, "ProviderError", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, a, store := newEnv(t, ingestFunc(func(context.Context, rag.IngestRequest) (rag.IngestResult, error) {
				return rag.IngestResult{}, tc.err
			}))
			require.NoError(t, store.Put(context.Background(), "t1/x.pdf", []byte("x")))

			_, err := env.ExecuteActivity(a.IngestDocumentActivity, IngestDocumentInput{TenantID: "t1", Filename: "x.pdf", BlobKey: "t1/x.pdf"})
			require.Error(t, err)
			var appErr *temporal.ApplicationError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.wantType, appErr.Type())
			assert.Equal(t, tc.nonRetryable, appErr.NonRetryable())
		})
	}
}

func TestIngestDocumentActivityMissingBlob(t *testing.T) {
	env, a, _ := newEnv(t, ingestFunc(func(context.Context, rag.IngestRequest) (rag.IngestResult, error) {
		t.Fatal("pipeline must not run without a blob")
		return rag.IngestResult{}, nil
	}))
	_, err := env.ExecuteActivity(a.IngestDocumentActivity, IngestDocumentInput{TenantID: "t1", Filename: "x.pdf", BlobKey: "t1/missing.pdf"})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NotFoundError", appErr.Type())
	assert.True(t, appErr.NonRetryable())
}
