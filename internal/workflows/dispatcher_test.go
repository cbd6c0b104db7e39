package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"supportbot/internal/blob"
	"supportbot/internal/rag"
)

type fakeRun struct {
	status IngestStatus
	err    error
}

func (r *fakeRun) GetID() string    { return "wf" }
func (r *fakeRun) GetRunID() string { return "run" }

func (r *fakeRun) Get(_ context.Context, valuePtr interface{}) error {
	if r.err != nil {
		return r.err
	}
	*valuePtr.(*IngestStatus) = r.status
	return nil
}

func (r *fakeRun) GetWithOptions(ctx context.Context, valuePtr interface{}, _ client.WorkflowRunGetOptions) error {
	return r.Get(ctx, valuePtr)
}

type fakeStarter struct {
	run     *fakeRun
	options client.StartWorkflowOptions
	input   DocumentIngestInput
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, options client.StartWorkflowOptions, _ interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.options = options
	f.input = args[0].(DocumentIngestInput)
	return f.run, nil
}

func newDispatcher(t *testing.T, run *fakeRun) (*Dispatcher, *fakeStarter, blob.Store) {
	t.Helper()
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	starter := &fakeStarter{run: run}
	return NewDispatcher(starter, "supportbot-ingest", store, 0), starter, store
}

func TestDispatcherStoresBlobAndStartsWorkflow(t *testing.T) {
	d, starter, store := newDispatcher(t, &fakeRun{status: IngestStatus{Status: StatusPersisted, DocumentID: "d1", ChunkCount: 3}})
	data := []byte("%PDF-1.4")

	res, err := d.Ingest(context.Background(), rag.IngestRequest{TenantID: "t1", Filename: "menu.pdf", Data: data})
	require.NoError(t, err)
	assert.Equal(t, rag.IngestResult{DocumentID: "d1", Name: "menu.pdf", ChunkCount: 3}, res)

	key := blob.Key("t1", "menu.pdf", data)
	assert.Equal(t, key, starter.input.BlobKey)
	assert.Equal(t, WorkflowID(key), starter.options.ID)
	assert.Equal(t, "supportbot-ingest", starter.options.TaskQueue)
	stored, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestDispatcherReportsDeduplicated(t *testing.T) {
	d, _, _ := newDispatcher(t, &fakeRun{status: IngestStatus{Status: StatusDeduplicated, DocumentID: "d1", ChunkCount: 3}})
	res, err := d.Ingest(context.Background(), rag.IngestRequest{TenantID: "t1", Filename: "menu.pdf", Data: []byte("x")})
	require.NoError(t, err)
	assert.True(t, res.Deduplicated)
}

func TestDispatcherMapsFailedStatusToRagKind(t *testing.T) {
	d, _, _ := newDispatcher(t, &fakeRun{status: IngestStatus{Status: StatusFailed, ErrorKind: "ValidationError", FailReason: "validation: file: empty"}})
	_, err := d.Ingest(context.Background(), rag.IngestRequest{TenantID: "t1", Filename: "menu.pdf", Data: []byte("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrValidation)
	assert.Equal(t, "ValidationError", rag.Kind(err))
}

func TestDispatcherMapsExhaustedRetriesToProviderError(t *testing.T) {
	wfErr := temporal.NewApplicationError("rate limited", "ProviderError")
	d, _, _ := newDispatcher(t, &fakeRun{err: wfErr})
	_, err := d.Ingest(context.Background(), rag.IngestRequest{TenantID: "t1", Filename: "menu.pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, rag.ErrProvider)
}

func TestDispatcherValidatesBeforeStoring(t *testing.T) {
	d, starter, _ := newDispatcher(t, &fakeRun{})
	_, err := d.Ingest(context.Background(), rag.IngestRequest{TenantID: "t1", Filename: "menu.docx", Data: []byte("x")})
	assert.ErrorIs(t, err, rag.ErrValidation)
	_, err = d.Ingest(context.Background(), rag.IngestRequest{TenantID: "t1", Filename: "menu.pdf"})
	assert.ErrorIs(t, err, rag.ErrValidation)
	assert.Empty(t, starter.input.BlobKey)
	assert.False(t, errors.Is(err, rag.ErrProvider))
}
