// Package metrics provides Prometheus metrics for confhist.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ersonp/confighistory/internal/domain/diff"
	"github.com/ersonp/confighistory/internal/domain/entities"
)

// Operation status label values.
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// Metrics holds all Prometheus metrics for confhist. Each instance owns its
// registry, so tests and multiple stores never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// History metrics
	RevisionsRecordedTotal *prometheus.CounterVec
	DiffLines              *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confhist_store_operations_total",
			Help: "Total number of snapshot store operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confhist_store_operation_duration_seconds",
			Help:    "Duration of snapshot store operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	m.RevisionsRecordedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confhist_revisions_recorded_total",
			Help: "Total number of revisions recorded",
		},
		[]string{"operation"},
	)

	m.DiffLines = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confhist_diff_lines_total",
			Help: "Side-by-side rows produced by comparisons, by change type",
		},
		[]string{"change"},
	)

	return m
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordStoreOperation records one store call and its outcome.
func (m *Metrics) RecordStoreOperation(operation string, duration time.Duration, err error) {
	status := StatusSuccess
	switch {
	case err == nil:
	case errors.Is(err, entities.ErrNotFound):
		status = StatusNotFound
	default:
		status = StatusError
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RevisionRecorded counts a stored revision.
func (m *Metrics) RevisionRecorded(op entities.OperationKind) {
	m.RevisionsRecordedTotal.WithLabelValues(string(op)).Inc()
}

// DiffComputed adds a comparison's row counts.
func (m *Metrics) DiffComputed(counts map[diff.ChangeType]int) {
	for change, n := range counts {
		m.DiffLines.WithLabelValues(string(change)).Add(float64(n))
	}
}

// WriteTextfile writes every metric to path in the text exposition format,
// for pickup by the node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
