package quotes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the store's Prometheus instruments.
type Metrics struct {
	// Records is the current collection size.
	Records prometheus.Gauge

	// Ingests counts ingestion outcomes.
	// Labels: result (ingested, updated, skipped)
	Ingests *prometheus.CounterVec

	// Evictions counts records dropped by the capacity cap.
	Evictions prometheus.Counter

	// Saves counts persistence operations.
	// Labels: result (success, error)
	Saves *prometheus.CounterVec
}

// NewMetrics registers the store instruments with reg. A nil reg uses a
// private registry so the instruments still work but are not exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Records: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "wonquotes",
			Subsystem: "store",
			Name:      "records",
			Help:      "Number of price records currently held",
		}),
		Ingests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wonquotes",
			Subsystem: "store",
			Name:      "ingests_total",
			Help:      "Ingestion outcomes by result",
		}, []string{"result"}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "wonquotes",
			Subsystem: "store",
			Name:      "evictions_total",
			Help:      "Records evicted by the capacity cap",
		}),
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wonquotes",
			Subsystem: "store",
			Name:      "saves_total",
			Help:      "Collection persistence operations by result",
		}, []string{"result"}),
	}
}
