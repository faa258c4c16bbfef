// Package metrics provides Prometheus metrics for the vault.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store metrics
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_store_operations_total",
			Help: "Total object store operations",
		},
		[]string{"collection", "operation", "status"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloudvault_store_operation_duration_seconds",
			Help:    "Object store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "operation"},
	)

	// Query metrics
	queryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cloudvault_query_duration_seconds",
			Help:    "Filter/sort pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Share metrics
	sharesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudvault_shares_created_total",
			Help: "Total shares created",
		},
	)

	shareValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_share_validations_total",
			Help: "Total share access validations",
		},
		[]string{"result"},
	)

	shareAccessesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudvault_share_accesses_total",
			Help: "Total recorded share accesses",
		},
	)

	sharesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudvault_shares_swept_total",
			Help: "Total expired shares removed by sweeps",
		},
	)

	// Artifact metrics
	artifactsBuiltTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_artifacts_built_total",
			Help: "Total share artifact builds",
		},
		[]string{"status"},
	)

	artifactBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudvault_artifact_bytes_total",
			Help: "Total bytes of produced artifact documents",
		},
	)

	// Ingest metrics
	ingestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_ingest_total",
			Help: "Total file ingestions",
		},
		[]string{"status"},
	)

	ingestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudvault_ingest_bytes_total",
			Help: "Total bytes ingested",
		},
	)

	progressSubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudvault_progress_subscribers_active",
			Help: "Number of active progress event subscribers",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordStoreOperation records an object store operation.
func RecordStoreOperation(collection, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	storeOperationsTotal.WithLabelValues(collection, operation, status).Inc()
	storeOperationDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// RecordQuery records a filter/sort pipeline run.
func RecordQuery(duration time.Duration) {
	queryDuration.Observe(duration.Seconds())
}

// RecordShareCreated records a share creation.
func RecordShareCreated() {
	sharesCreatedTotal.Inc()
}

// RecordShareValidation records a validation outcome ("valid" or the
// policy reason).
func RecordShareValidation(result string) {
	shareValidationsTotal.WithLabelValues(result).Inc()
}

// RecordShareAccess records one access-counter increment.
func RecordShareAccess() {
	shareAccessesTotal.Inc()
}

// RecordSweep records the number of shares removed by a sweep.
func RecordSweep(removed int) {
	sharesSweptTotal.Add(float64(removed))
}

// RecordArtifactBuilt records an artifact build outcome.
func RecordArtifactBuilt(status string, documentBytes int) {
	artifactsBuiltTotal.WithLabelValues(status).Inc()
	if documentBytes > 0 {
		artifactBytesTotal.Add(float64(documentBytes))
	}
}

// RecordIngest records a file ingestion outcome.
func RecordIngest(bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ingestTotal.WithLabelValues(status).Inc()
	if success {
		ingestBytesTotal.Add(float64(bytes))
	}
}

// SetProgressSubscribers sets the number of active progress subscribers.
func SetProgressSubscribers(count int64) {
	progressSubscribersActive.Set(float64(count))
}
