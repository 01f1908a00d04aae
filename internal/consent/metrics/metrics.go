package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	ConsentsGranted       *prometheus.CounterVec
	ConsentsRevoked       prometheus.Counter
	GrantsRejected        *prometheus.CounterVec
	FieldsFilteredAtGrant prometheus.Histogram
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConsentsGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduledger_consents_granted_total",
			Help: "Total number of consents granted, labeled by purpose",
		}, []string{"purpose"}),
		ConsentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eduledger_consents_revoked_total",
			Help: "Total number of consents revoked",
		}),
		GrantsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduledger_consent_grants_rejected_total",
			Help: "Consent grant attempts rejected, labeled by error code",
		}, []string{"code"}),
		FieldsFilteredAtGrant: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduledger_consent_fields_filtered_at_grant",
			Help:    "Number of unknown dataShared entries dropped per grant",
			Buckets: []float64{0, 1, 2, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementGranted(purpose string) {
	m.ConsentsGranted.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.ConsentsRevoked.Inc()
}

func (m *Metrics) IncrementGrantRejected(code string) {
	m.GrantsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveFieldsFiltered(count float64) {
	m.FieldsFilteredAtGrant.Observe(count)
}
