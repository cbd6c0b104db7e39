package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"supportbot/internal/config"
)

func TestRunReturnsStartupError(t *testing.T) {
	cfg := config.Load()
	cfg.ChunkSize = 0

	err := run(cfg, zap.NewNop())
	require.ErrorContains(t, err, "startup")
	require.ErrorContains(t, err, "SUPPORTBOT_CHUNK_SIZE")
}
