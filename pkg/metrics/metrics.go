package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	SubmissionsTotal *prometheus.CounterVec
	UploadsTotal     *prometheus.CounterVec
	UploadDuration   prometheus.Histogram
	UploadBytes      prometheus.Histogram
	CommitDuration   prometheus.Histogram

	OrphanedAssetsTotal prometheus.Counter
	OrphanCleanupFailed prometheus.Counter

	AuditBufferDropped prometheus.Counter
}

// NewCollector registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewCollector(serviceName string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15, 60},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "ingestion",
			Name:      "submissions_total",
			Help:      "Record submissions by outcome (succeeded, validation, auth, upload, commit, cancelled).",
		}, []string{"outcome"}),

		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "ingestion",
			Name:      "uploads_total",
			Help:      "Per-file uploads by stage reached and result.",
		}, []string{"stage", "result"}),

		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "ingestion",
			Name:      "upload_duration_seconds",
			Help:      "Write plus locator resolution latency per file.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		UploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "ingestion",
			Name:      "upload_bytes",
			Help:      "Size of uploaded documents.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 8),
		}),

		CommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "ingestion",
			Name:      "commit_duration_seconds",
			Help:      "Record store insert latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		OrphanedAssetsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "ingestion",
			Name:      "orphaned_assets_total",
			Help:      "Objects stored by a submission that never committed.",
		}),

		OrphanCleanupFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "ingestion",
			Name:      "orphan_cleanup_failed_total",
			Help:      "Best-effort orphan deletions that failed. Alert if non-zero.",
		}),

		AuditBufferDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
