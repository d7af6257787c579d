package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application level Prometheus collectors.
type Metrics struct {
	LedgerSubmissions    *prometheus.CounterVec
	LedgerSubmitDuration prometheus.Histogram
	Reconciliations      *prometheus.CounterVec
	InvoiceTransitions   *prometheus.CounterVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		LedgerSubmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotravel",
			Subsystem: "ledger",
			Name:      "submissions_total",
			Help:      "Ledger transaction submissions by function and outcome.",
		}, []string{"function", "outcome"}),
		LedgerSubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cotravel",
			Subsystem: "ledger",
			Name:      "submit_duration_seconds",
			Help:      "Time spent submitting and confirming ledger transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		Reconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotravel",
			Subsystem: "invoice",
			Name:      "reconciliations_total",
			Help:      "Escrow state reconciliations by outcome.",
		}, []string{"outcome"}),
		InvoiceTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotravel",
			Subsystem: "invoice",
			Name:      "status_transitions_total",
			Help:      "Invoice status transitions by target status.",
		}, []string{"to"}),
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "cotravel",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "In-flight HTTP requests.",
		}),
	}
}

// GinMiddleware tracks the number of requests currently being served.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()
		c.Next()
	}
}
