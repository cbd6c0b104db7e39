package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"supportbot/internal/blob"
	"supportbot/internal/rag"
)

// Starter is the part of client.Client the dispatcher uses.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Dispatcher ingests documents through DocumentIngestWorkflow: the bytes go
// to blob storage, a worker runs the pipeline, and the caller blocks on the
// workflow result.
type Dispatcher struct {
	client    Starter
	taskQueue string
	blobs     blob.Store
	timeout   time.Duration
}

func NewDispatcher(c Starter, taskQueue string, blobs blob.Store, timeout time.Duration) *Dispatcher {
	return &Dispatcher{client: c, taskQueue: taskQueue, blobs: blobs, timeout: timeout}
}

func (d *Dispatcher) Ingest(ctx context.Context, req rag.IngestRequest) (rag.IngestResult, error) {
	if err := rag.ValidateFilename(req.Filename); err != nil {
		return rag.IngestResult{}, err
	}
	if len(req.Data) == 0 {
		return rag.IngestResult{}, &rag.ValidationError{Field: "file", Reason: "empty upload"}
	}
	if req.TenantID == "" {
		return rag.IngestResult{}, &rag.ValidationError{Field: "tenant_id", Reason: "required"}
	}

	key := blob.Key(req.TenantID, req.Filename, req.Data)
	if err := d.blobs.Put(ctx, key, req.Data); err != nil {
		return rag.IngestResult{}, fmt.Errorf("store upload: %w", err)
	}
	run, err := d.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    WorkflowID(key),
		TaskQueue:             d.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, DocumentIngestWorkflow, DocumentIngestInput{
		TenantID:       req.TenantID,
		Filename:       req.Filename,
		BlobKey:        key,
		TimeoutSeconds: int(d.timeout / time.Second),
	})
	if err != nil {
		return rag.IngestResult{}, fmt.Errorf("start ingest workflow: %w", err)
	}

	var st IngestStatus
	if err := run.Get(ctx, &st); err != nil {
		return rag.IngestResult{}, fromWorkflowError(err)
	}
	if st.Status == StatusFailed {
		return rag.IngestResult{}, &IngestError{Kind: st.ErrorKind, Message: st.FailReason}
	}
	return rag.IngestResult{
		DocumentID:   st.DocumentID,
		Name:         req.Filename,
		ChunkCount:   st.ChunkCount,
		Deduplicated: st.Status == StatusDeduplicated,
	}, nil
}

// IngestError carries a rag error kind back across the workflow boundary so
// callers can still match it with errors.Is against the rag sentinels.
type IngestError struct {
	Kind    string
	Message string
}

func (e *IngestError) Error() string { return e.Message }

func (e *IngestError) Is(target error) bool {
	switch e.Kind {
	case "ValidationError":
		return target == rag.ErrValidation
	case "NotFoundError":
		return target == rag.ErrNotFound
	case "DataIntegrityError":
		return target == rag.ErrDataIntegrity
	case "ProviderError":
		return target == rag.ErrProvider
	case "ConfigError":
		return target == rag.ErrInvalidChunkConfig
	}
	return false
}

func fromWorkflowError(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return &IngestError{Kind: appErr.Type(), Message: appErr.Error()}
	}
	return fmt.Errorf("ingest workflow: %w", err)
}
