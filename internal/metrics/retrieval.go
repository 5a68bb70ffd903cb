package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and search index Prometheus metrics.
var (
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowise",
			Name:      "retrieval_requests_total",
			Help:      "Total retrieval calls by outcome",
		},
		[]string{"index", "outcome"}, // "ok" / "fallback" / "embedding_error" / "search_error"
	)

	RetrievalHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowise",
			Name:      "retrieval_hits",
			Help:      "Number of hits returned by the search index per retrieval",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"index"},
	)

	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowise",
			Name:      "search_request_duration_seconds",
			Help:      "Search index request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"index", "status"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalHits)
	prometheus.MustRegister(SearchRequestDuration)
	retrievalMetricsRegistered = true
}
