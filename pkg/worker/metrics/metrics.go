// Package metrics holds the Prometheus collectors the synchronizer
// reports to. The teacher depends directly on github.com/prometheus/common;
// client_golang is the collector library that dependency's ecosystem is
// built around, and spec.md §4.4's "update a gauge with the
// pending-table size labeled by current epoch" requirement needs an
// actual collector, not just a log line.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics mirrors the shape of the teacher's own metrics.WorkerMetrics
// (referenced, not retrieved, by original_source/worker/src/synchronizer.rs)
// scaled down to the single gauge this module's core loop reports.
type WorkerMetrics struct {
	PendingElements *prometheus.GaugeVec
}

// NewWorkerMetrics constructs and registers the synchronizer's metrics
// against reg. Passing a fresh prometheus.NewRegistry() keeps tests
// from colliding on the global default registry.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	m := &WorkerMetrics{
		PendingElements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "worker",
			Subsystem: "synchronizer",
			Name:      "pending_elements",
			Help:      "Number of batch digests currently pending a peer fetch.",
		}, []string{"epoch"}),
	}
	reg.MustRegister(m.PendingElements)
	return m
}

// SetPending reports the current pending-table size for the given
// epoch, as spec.md §4.4's retry-timer step requires.
func (m *WorkerMetrics) SetPending(epoch uint64, size int) {
	m.PendingElements.WithLabelValues(strconv.FormatUint(epoch, 10)).Set(float64(size))
}
