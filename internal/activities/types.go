package activities

type IngestDocumentInput struct {
	TenantID string `json:"tenant_id"`
	Filename string `json:"filename"`
	BlobKey  string `json:"blob_key"`
}
