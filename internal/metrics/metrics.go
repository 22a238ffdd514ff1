// Package metrics provides Prometheus metrics for note store operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the store metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SearchResults     *prometheus.HistogramVec

	// Indexed backend write path
	InsertCollisionsTotal prometheus.Counter
	InsertRetriesTotal    prometheus.Counter
	DeleteConflictsTotal  prometheus.Counter
}

// New creates the metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notelog_operations_total",
			Help: "Total number of backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notelog_operation_duration_seconds",
			Help:    "Duration of backend operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	m.SearchResults = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notelog_search_results",
			Help:    "Number of notes returned per search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"backend"},
	)

	m.InsertCollisionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "notelog_kv_insert_collisions_total",
		Help: "Inserts that moved to the next timestamp because the key was taken",
	})

	m.InsertRetriesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "notelog_kv_insert_retries_total",
		Help: "Inserts retried after a watched transaction aborted",
	})

	m.DeleteConflictsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "notelog_kv_delete_conflicts_total",
		Help: "Deletes refused or aborted because of a concurrent write",
	})

	reg.MustRegister(collectors.NewGoCollector())

	return m
}

// ObserveOperation records one backend operation that started at start.
func (m *Metrics) ObserveOperation(backend, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.OperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}

// ObserveSearch records the size of a search result.
func (m *Metrics) ObserveSearch(backend string, n int) {
	if m == nil {
		return
	}
	m.SearchResults.WithLabelValues(backend).Observe(float64(n))
}

// IncCollision counts a timestamp collision on insert.
func (m *Metrics) IncCollision() {
	if m == nil {
		return
	}
	m.InsertCollisionsTotal.Inc()
}

// IncRetry counts an aborted insert transaction.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.InsertRetriesTotal.Inc()
}

// IncDeleteConflict counts a refused or aborted delete.
func (m *Metrics) IncDeleteConflict() {
	if m == nil {
		return
	}
	m.DeleteConflictsTotal.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
