package workflows

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"supportbot/internal/activities"
	"supportbot/internal/rag"
)

const QueryGetIngestStatus = "GetIngestStatus"

// Error kinds that can never succeed on another attempt.
var nonRetryableKinds = []string{"ValidationError", "NotFoundError", "DataIntegrityError", "ConfigError"}

// DocumentIngestWorkflow runs the ingestion pipeline for one uploaded blob.
// Transient provider failures are retried with exponential backoff; any
// other rag error ends the run with status "failed" and no error, so callers
// can tell a bad document from an unavailable system.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (IngestStatus, error) {
	status := IngestStatus{
		TenantID:    input.TenantID,
		Filename:    input.Filename,
		BlobKey:     input.BlobKey,
		CurrentStep: "init",
		Status:      StatusProcessing,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestStatus, func() (IngestStatus, error) {
		return status, nil
	}); err != nil {
		return status, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: durationOrDefault(input.TimeoutSeconds, 300),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        4,
			NonRetryableErrorTypes: nonRetryableKinds,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	status.CurrentStep = "ingest_document"
	status.Steps[status.CurrentStep] = "processing"
	var res rag.IngestResult
	err := workflow.ExecuteActivity(ctx, "IngestDocumentActivity", activities.IngestDocumentInput{
		TenantID: input.TenantID,
		Filename: input.Filename,
		BlobKey:  input.BlobKey,
	}).Get(ctx, &res)
	if err != nil {
		status.Steps[status.CurrentStep] = "failed"
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && isTerminal(appErr) {
			status.Status = StatusFailed
			status.ErrorKind = appErr.Type()
			status.FailReason = appErr.Error()
			logger.Warn("document rejected", "tenant_id", input.TenantID, "filename", input.Filename, "kind", status.ErrorKind)
			return status, nil
		}
		return status, err
	}
	status.Steps[status.CurrentStep] = "done"

	status.DocumentID = res.DocumentID
	status.ChunkCount = res.ChunkCount
	status.CurrentStep = "done"
	if res.Deduplicated {
		status.Status = StatusDeduplicated
	} else {
		status.Status = StatusPersisted
	}
	return status, nil
}

func isTerminal(appErr *temporal.ApplicationError) bool {
	if appErr.NonRetryable() {
		return true
	}
	for _, k := range nonRetryableKinds {
		if appErr.Type() == k {
			return true
		}
	}
	return false
}

// WorkflowID is stable per blob so concurrent uploads of the same file join
// one execution.
func WorkflowID(blobKey string) string {
	return "ingest-" + sanitizeID(blobKey)
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
