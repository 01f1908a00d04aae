package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for certificate operations.
type Metrics struct {
	CertificatesIssued  *prometheus.CounterVec
	CertificatesRevoked *prometheus.CounterVec
	RevocationsRejected *prometheus.CounterVec
	QueryResults        *prometheus.HistogramVec
}

// New registers and returns certificate metrics collectors.
func New() *Metrics {
	return &Metrics{
		CertificatesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduledger_certificates_issued_total",
			Help: "Total number of certificates issued, labeled by institution",
		}, []string{"institution"}),
		CertificatesRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduledger_certificates_revoked_total",
			Help: "Total number of certificates revoked, labeled by institution",
		}, []string{"institution"}),
		RevocationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduledger_certificate_revocations_rejected_total",
			Help: "Revocation attempts rejected, labeled by error code",
		}, []string{"code"}),
		QueryResults: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eduledger_certificate_query_results",
			Help:    "Distribution of result counts for certificate queries",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"index"}),
	}
}

func (m *Metrics) IncrementIssued(institution string) {
	m.CertificatesIssued.WithLabelValues(institution).Inc()
}

func (m *Metrics) IncrementRevoked(institution string) {
	m.CertificatesRevoked.WithLabelValues(institution).Inc()
}

func (m *Metrics) IncrementRevocationRejected(code string) {
	m.RevocationsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveQueryResults(index string, count float64) {
	m.QueryResults.WithLabelValues(index).Observe(count)
}
