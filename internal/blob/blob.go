// Package blob keeps the raw bytes of uploaded documents so ingestion can run
// out of band from the HTTP request that received them.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"supportbot/internal/config"
	"supportbot/internal/util"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.BlobBackend.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case "", "local":
		return NewLocalStore(cfg.BlobDir)
	case "s3":
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// Key is content addressed within the tenant, so re-uploading the same file
// overwrites the same object.
func Key(tenantID, filename string, data []byte) string {
	return KeyForHash(tenantID, util.SHA256Hex(data), filename)
}

// KeyForHash rebuilds the key of a stored document from its content hash.
func KeyForHash(tenantID, contentHash, filename string) string {
	return tenantID + "/" + contentHash + strings.ToLower(path.Ext(filename))
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}
