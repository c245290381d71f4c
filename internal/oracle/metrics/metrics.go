package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the price cache.
type Metrics struct {
	UpdatesAccepted *prometheus.CounterVec
	UpdatesRejected *prometheus.CounterVec
	StaleReads      *prometheus.CounterVec
}

// New creates and registers the metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UpdatesAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_oracle_updates_accepted_total",
			Help: "Accepted price attestations by feed",
		}, []string{"feed"}),
		UpdatesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_oracle_updates_rejected_total",
			Help: "Rejected price updates by reason",
		}, []string{"reason"}),
		StaleReads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_oracle_stale_reads_total",
			Help: "Fresh-read attempts rejected for staleness by feed",
		}, []string{"feed"}),
	}
}
