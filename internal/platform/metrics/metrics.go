// Package metrics holds the Prometheus instruments for tree synchronization
// and mutations. A nil *Metrics is valid and records nothing, which keeps
// tests free of registry wiring.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dsa"

type Metrics struct {
	// TreeRebuildsTotal counts rebuilds by result (ok or error).
	TreeRebuildsTotal *prometheus.CounterVec

	TreeRebuildDuration prometheus.Histogram

	// ActiveSubscriptions is the number of live tree subscriptions.
	ActiveSubscriptions prometheus.Gauge

	// MalformedDocumentsTotal counts documents skipped at the read boundary.
	// Labels: collection (categories, problems)
	MalformedDocumentsTotal *prometheus.CounterVec

	// MutationsTotal counts façade operations by op and result.
	MutationsTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TreeRebuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_rebuilds_total",
			Help:      "Number of category tree rebuilds by result.",
		}, []string{"result"}),
		TreeRebuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tree_rebuild_duration_seconds",
			Help:      "Time spent reading and reshaping a tenant's tree.",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Number of live tree subscriptions.",
		}),
		MalformedDocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_documents_total",
			Help:      "Documents skipped because a required field was missing or invalid.",
		}, []string{"collection"}),
		MutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Mutation façade operations by op and result.",
		}, []string{"op", "result"}),
	}
}

func (m *Metrics) ObserveRebuild(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TreeRebuildsTotal.WithLabelValues(result).Inc()
	m.TreeRebuildDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Dec()
}

func (m *Metrics) MalformedDocument(collection string) {
	if m == nil {
		return
	}
	m.MalformedDocumentsTotal.WithLabelValues(collection).Inc()
}

func (m *Metrics) Mutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.MutationsTotal.WithLabelValues(op, result).Inc()
}
