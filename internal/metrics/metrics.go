package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors shared by the API, the worker and the RAG
// core. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ingestStates     *prometheus.CounterVec
	ingestResults    *prometheus.CounterVec
	chunksEmbedded   prometheus.Counter
	providerCalls    *prometheus.CounterVec
	retrievalSeconds prometheus.Histogram
	candidates       prometheus.Histogram
	fallbacks        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ingestStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "ingest_state_transitions_total",
			Help:      "Ingestion pipeline state transitions.",
		}, []string{"state"}),
		ingestResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "ingest_documents_total",
			Help:      "Documents that reached a terminal ingestion outcome.",
		}, []string{"status"}),
		chunksEmbedded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "chunks_embedded_total",
			Help:      "Chunks embedded during ingestion.",
		}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "provider_calls_total",
			Help:      "Calls to embedding and chat-completion providers.",
		}, []string{"provider", "op", "outcome"}),
		retrievalSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "supportbot",
			Name:      "retrieval_duration_seconds",
			Help:      "Time to embed a query and rank the tenant corpus.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		candidates: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "supportbot",
			Name:      "retrieval_candidates",
			Help:      "Chunks scanned per retrieval.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "answer_fallbacks_total",
			Help:      "Answers replaced by the human advisor message.",
		}),
	}
}

func (m *Metrics) IngestState(state string) {
	if m == nil {
		return
	}
	m.ingestStates.WithLabelValues(state).Inc()
}

func (m *Metrics) IngestResult(status string) {
	if m == nil {
		return
	}
	m.ingestResults.WithLabelValues(status).Inc()
}

func (m *Metrics) ChunksEmbedded(n int) {
	if m == nil {
		return
	}
	m.chunksEmbedded.Add(float64(n))
}

func (m *Metrics) ProviderCall(provider, op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerCalls.WithLabelValues(provider, op, outcome).Inc()
}

func (m *Metrics) Retrieval(started time.Time, scanned int) {
	if m == nil {
		return
	}
	m.retrievalSeconds.Observe(time.Since(started).Seconds())
	m.candidates.Observe(float64(scanned))
}

func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}
