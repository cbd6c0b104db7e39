package workflows

type DocumentIngestInput struct {
	TenantID       string `json:"tenant_id"`
	Filename       string `json:"filename"`
	BlobKey        string `json:"blob_key"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

const (
	StatusProcessing   = "processing"
	StatusPersisted    = "persisted"
	StatusDeduplicated = "deduplicated"
	StatusFailed       = "failed"
)

type IngestStatus struct {
	TenantID    string            `json:"tenant_id"`
	Filename    string            `json:"filename"`
	BlobKey     string            `json:"blob_key"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	DocumentID  string            `json:"document_id,omitempty"`
	ChunkCount  int               `json:"chunk_count"`
	FailReason  string            `json:"fail_reason,omitempty"`
	ErrorKind   string            `json:"error_kind,omitempty"`
	Steps       map[string]string `json:"steps"`
}
