// Package metrics exposes ledger lifecycle counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "billbook"

// Metrics holds every collector the service updates.
type Metrics struct {
	// Entity metrics, labelled by kind and op (create, update, delete, restore).
	Mutations *prometheus.CounterVec

	// Recycle bin metrics
	Purged         prometheus.Counter
	QuarantineSize prometheus.Gauge

	// Snapshot metrics, labelled by op (create, restore).
	Snapshots         *prometheus.CounterVec
	IntegrityFailures prometheus.Counter
	DroppedRecords    prometheus.Counter

	// Persistence
	StoreErrors prometheus.Counter
}

// New registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Entity mutations by kind and operation.",
		}, []string{"kind", "op"}),

		Purged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recycle",
			Name:      "purged_total",
			Help:      "Recycle bin entries permanently removed.",
		}),
		QuarantineSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recycle",
			Name:      "entries",
			Help:      "Entries currently in the recycle bin.",
		}),

		Snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "operations_total",
			Help:      "Successful snapshot operations.",
		}, []string{"op"}),
		IntegrityFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "integrity_failures_total",
			Help:      "Snapshots rejected on restore.",
		}),
		DroppedRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "dropped_records_total",
			Help:      "Bills and payments left out of snapshots for lack of a customer.",
		}),

		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Failed collection writes.",
		}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
