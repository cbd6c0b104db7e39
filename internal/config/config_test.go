package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUPPORTBOT_CHUNK_SIZE", "")
	t.Setenv("SUPPORTBOT_CHUNK_OVERLAP", "")
	t.Setenv("SUPPORTBOT_PROVIDER_TIMEOUT", "")
	cfg := Load()
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 3, cfg.TopK)
	require.NoError(t, cfg.Validate())
}

func TestLoadDurationForms(t *testing.T) {
	t.Setenv("SUPPORTBOT_PROVIDER_TIMEOUT", "45")
	assert.Equal(t, 45*time.Second, Load().ProviderTimeout)
	t.Setenv("SUPPORTBOT_PROVIDER_TIMEOUT", "1m30s")
	assert.Equal(t, 90*time.Second, Load().ProviderTimeout)
	t.Setenv("SUPPORTBOT_PROVIDER_TIMEOUT", "soon")
	assert.Equal(t, 30*time.Second, Load().ProviderTimeout)
}

func TestValidateRejectsOverlapNotBelowSize(t *testing.T) {
	cfg := Load()
	cfg.ChunkSize = 10
	cfg.ChunkOverlap = 10
	require.Error(t, cfg.Validate())

	cfg.ChunkOverlap = -1
	require.Error(t, cfg.Validate())
}

func TestValidateS3NeedsBucket(t *testing.T) {
	cfg := Load()
	cfg.BlobBackend = "s3"
	cfg.S3Bucket = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPPORTBOT_S3_BUCKET")

	cfg.S3Bucket = "docs"
	require.NoError(t, cfg.Validate())
}
