package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the asset registry and ledger.
type Metrics struct {
	AssetsIssued         prometheus.Counter
	FractionsPurchased   prometheus.Counter
	FractionsTransferred prometheus.Counter
	Recombinations       prometheus.Counter
	OperationsRejected   *prometheus.CounterVec
}

// New creates and registers the metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AssetsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_registry_assets_issued_total",
			Help: "Total assets issued",
		}),
		FractionsPurchased: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_registry_fractions_purchased_total",
			Help: "Total fractions moved through purchases",
		}),
		FractionsTransferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_registry_fractions_transferred_total",
			Help: "Total fractions moved through transfers",
		}),
		Recombinations: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_registry_recombinations_total",
			Help: "Total whole-asset recombinations",
		}),
		OperationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_registry_operations_rejected_total",
			Help: "Rejected mutating operations by error code",
		}, []string{"operation", "code"}),
	}
}
