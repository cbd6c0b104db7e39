package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IngestState("EXTRACTED")
	m.IngestState("EXTRACTED")
	m.IngestResult("persisted")
	m.ChunksEmbedded(5)
	m.ProviderCall("openai", "embed", nil)
	m.ProviderCall("openai", "embed", errors.New("boom"))
	m.Retrieval(time.Now(), 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestStates.WithLabelValues("EXTRACTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestResults.WithLabelValues("persisted")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.chunksEmbedded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("openai", "embed", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IngestState("RECEIVED")
		m.ProviderCall("mock", "embed", nil)
		m.Fallback()
	})
}
