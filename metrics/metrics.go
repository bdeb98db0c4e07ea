// Package metrics provides Prometheus metrics for the wikipub publisher.
// It tracks API calls, upload volume, chunk traffic, and pipeline progress.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "wikipub"
)

var (
	// APIRequestsTotal counts Action API requests by action and status
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Total wiki Action API requests by action and status",
	}, []string{"action", "status"})

	// APILatency measures Action API call latency by action
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_latency_seconds",
		Help:      "Wiki Action API call latency by action",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	// APIRetries counts API request retries by action
	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_retries_total",
		Help:      "Wiki Action API retry count by action",
	}, []string{"action"})

	// AuthFailures counts authentication failures by reason
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "auth_failures_total",
		Help:      "Authentication failure count by reason",
	}, []string{"reason"})

	// UploadsTotal counts asset publications by kind and status
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "uploads_total",
		Help:      "Asset publications by kind and status",
	}, []string{"kind", "status"})

	// UploadBytes counts bytes sent in upload requests
	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upload_bytes_total",
		Help:      "Total bytes sent in upload requests",
	})

	// ChunkRequests counts chunk requests across all chunked uploads
	ChunkRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "chunk_requests_total",
		Help:      "Total chunk requests sent in chunked uploads",
	})

	// EditOperations counts write operations by type and status
	EditOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "edit_operations_total",
		Help:      "Edit operations by type and status",
	}, []string{"operation", "status"})

	// ContentSize tracks content sizes processed
	ContentSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Content size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	}, []string{"operation"})

	// LinksRewritten counts link rewrites by reference category
	LinksRewritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "links_rewritten_total",
		Help:      "Link rewrites by reference category",
	}, []string{"category"})

	// LinksUnresolved counts references that fell back to a guessed URL
	LinksUnresolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "links_unresolved_total",
		Help:      "References resolved by best-effort guess instead of a published URL",
	})

	// AssetsPending tracks assets not yet published
	AssetsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "assets_pending",
		Help:      "Assets collected but not yet published",
	})

	// AssetsPublished tracks assets published so far in this run
	AssetsPublished = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "assets_published",
		Help:      "Assets published so far in this run",
	})
)

// RecordAPICall records a completed Action API call
func RecordAPICall(action string, duration float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	APIRequestsTotal.WithLabelValues(action, status).Inc()
	APILatency.WithLabelValues(action).Observe(duration)
}

// RecordUpload records one asset publication attempt
func RecordUpload(kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	UploadsTotal.WithLabelValues(kind, status).Inc()
}

// RecordRewrite records a rewritten reference, or an unresolved one that
// fell back to a guessed URL
func RecordRewrite(category string, resolved bool) {
	LinksRewritten.WithLabelValues(category).Inc()
	if !resolved {
		LinksUnresolved.Inc()
	}
}

// SetRegistrySize updates the pipeline progress gauges
func SetRegistrySize(pending, published int) {
	AssetsPending.Set(float64(pending))
	AssetsPublished.Set(float64(published))
}
