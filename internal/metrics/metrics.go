// Package metrics holds the Prometheus collectors for ingestion and search.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every kbase collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	ingestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbase_ingestions_total",
			Help: "Ingestion attempts by terminal status",
		},
		[]string{"status"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kbase_ingestion_stage_seconds",
			Help:    "Duration of each ingestion stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
		},
		[]string{"stage"},
	)
	searchRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kbase_search_requests_total",
			Help: "Total number of search queries",
		},
	)
	searchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kbase_search_latency_seconds",
			Help:    "Search latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kbase_queue_depth",
			Help: "Documents waiting for an ingestion worker",
		},
	)
)

func init() {
	Registry.MustRegister(
		ingestionsTotal, stageDuration, searchRequests, searchLatency, queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IngestionFinished counts an attempt that reached status.
func IngestionFinished(status string) {
	ingestionsTotal.WithLabelValues(status).Inc()
}

// StageObserved records how long a pipeline stage took.
func StageObserved(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SearchObserved counts one query and its latency.
func SearchObserved(d time.Duration) {
	searchRequests.Inc()
	searchLatency.Observe(d.Seconds())
}

// SetQueueDepth reports the number of queued documents.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
