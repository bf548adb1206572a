// Package metrics exposes Prometheus collectors for the sync engine.
//
// # Basic Usage
//
//	metrics.RecordsFetched.WithLabelValues("order").Add(float64(len(records)))
//	metrics.ObserveEntity(metrics.StageTransform, "order", entity.Failed())
//
//	timer := metrics.NewTimer("fetch_page")
//	fetchPage(ctx, page)
//	metrics.PageFetchSeconds.WithLabelValues("salesOrder").Observe(timer.Stop().Seconds())
//
// Collectors register on the default registry at package init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels for EntitiesTotal.
const (
	StageTransform = "transform"
	StageUpsert    = "upsert"
)

// Status labels for EntitiesTotal.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// RecordsFetched counts raw records retrieved per kind.
	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nsagency_records_fetched_total",
			Help: "Total number of raw records fetched from the source",
		},
		[]string{"kind"},
	)

	// EntitiesTotal counts entities produced per stage and outcome.
	// Labels: stage (transform/upsert), kind, status (success/failure)
	EntitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nsagency_entities_total",
			Help: "Total number of entities processed",
		},
		[]string{"stage", "kind", "status"},
	)

	// WindowWidenings counts how often an empty window was extended.
	WindowWidenings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nsagency_window_widenings_total",
			Help: "Total number of window widenings after empty probes",
		},
		[]string{"kind"},
	)

	// PageFetchSeconds tracks source page latency.
	PageFetchSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nsagency_page_fetch_seconds",
			Help:    "Latency of source page fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"record_type"},
	)

	// ActiveWorkers tracks in-flight work items per pool.
	ActiveWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nsagency_active_workers",
			Help: "Number of in-flight work items per pool",
		},
		[]string{"pool"},
	)

	// RemoteRetries counts retried connector calls.
	// Labels: connector, operation, error_type
	RemoteRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nsagency_remote_retries_total",
			Help: "Total number of retried remote calls",
		},
		[]string{"connector", "operation", "error_type"},
	)
)

// ObserveEntity records one entity outcome for stage.
func ObserveEntity(stage, kind string, failed bool) {
	status := StatusSuccess
	if failed {
		status = StatusFailure
	}
	EntitiesTotal.WithLabelValues(stage, kind, status).Inc()
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
