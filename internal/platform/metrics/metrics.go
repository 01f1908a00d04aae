package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds gateway-level Prometheus metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	EndpointLatency *prometheus.HistogramVec
	TxSubmitted     *prometheus.CounterVec
	TxConflicts     prometheus.Counter
	VerifyCacheHits *prometheus.CounterVec
}

// New creates and registers all gateway metrics.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduledger_http_requests_total",
			Help: "Total HTTP requests, labeled by endpoint and status",
		}, []string{"endpoint", "status"}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eduledger_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		TxSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduledger_transactions_submitted_total",
			Help: "Transactions submitted, labeled by operation and outcome",
		}, []string{"operation", "outcome"}),
		TxConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eduledger_transaction_conflicts_total",
			Help: "Transactions that exhausted optimistic retry",
		}),
		VerifyCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduledger_verify_cache_requests_total",
			Help: "QuickVerify cache lookups, labeled by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementRequests(endpoint, status string) {
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Metrics) IncrementTxSubmitted(operation, outcome string) {
	m.TxSubmitted.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncrementTxConflicts() {
	m.TxConflicts.Inc()
}

func (m *Metrics) IncrementVerifyCache(result string) {
	m.VerifyCacheHits.WithLabelValues(result).Inc()
}
