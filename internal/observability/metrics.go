// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Compute metrics
	AttestationsIssued *prometheus.CounterVec
	ComputeErrors      *prometheus.CounterVec
	ScoringDuration    *prometheus.HistogramVec
	ScoreDistribution  *prometheus.HistogramVec

	// Signing metrics
	SignaturesProduced prometheus.Counter
	SigningErrors      prometheus.Counter

	// Publish metrics
	ProofsPublished prometheus.Counter
	PublishFailures *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	PublishDegraded prometheus.Counter

	// Decryption boundary metrics
	DecryptRequests *prometheus.CounterVec
	DecryptDegraded prometheus.Counter

	// Admission metrics
	AdmissionDecisions *prometheus.CounterVec
	TrackedClients     prometheus.Gauge

	// Batch metrics
	BatchesProcessed prometheus.Counter
	BatchesRejected  prometheus.Counter
	BatchItems       *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Event fan-out metrics
	StreamClients   prometheus.Gauge
	EventsBroadcast prometheus.Counter
	EventsDropped   prometheus.Counter

	// Health metrics
	LastIssuanceTimestamp prometheus.Gauge
	UptimeSeconds         prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "credit_attestor"
	}

	return &Metrics{
		// Compute metrics
		AttestationsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "attestations_issued_total",
			Help:      "Total number of attestations issued by kind and shape",
		}, []string{"kind", "shape"}),
		ComputeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "errors_total",
			Help:      "Total number of compute pipeline errors by kind and reason",
		}, []string{"kind", "reason"}),
		ScoringDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "scoring_duration_seconds",
			Help:      "Scoring run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		ScoreDistribution: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "score",
			Help:      "Distribution of issued scores by kind",
			Buckets:   []float64{50, 100, 200, 300, 400, 500, 600, 700, 800, 850, 900, 1000},
		}, []string{"kind"}),

		// Signing metrics
		SignaturesProduced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signer",
			Name:      "signatures_total",
			Help:      "Total number of signatures produced",
		}),
		SigningErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signer",
			Name:      "errors_total",
			Help:      "Total number of signing failures",
		}),

		// Publish metrics
		ProofsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "proofs_published_total",
			Help:      "Total number of proof bundles published",
		}),
		PublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "failures_total",
			Help:      "Total number of publish failures by reason",
		}, []string{"reason"}),
		PublishDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "duration_seconds",
			Help:      "Proof bundle publish duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PublishDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "degraded_total",
			Help:      "Total number of responses issued without an anchored proof",
		}),

		// Decryption boundary metrics
		DecryptRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fhe",
			Name:      "decrypt_requests_total",
			Help:      "Total number of decryption requests by source mode",
		}, []string{"mode"}),
		DecryptDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fhe",
			Name:      "decrypt_degraded_total",
			Help:      "Total number of decryptions that fell back to defaults",
		}),

		// Admission metrics
		AdmissionDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Total number of admission decisions by outcome",
		}, []string{"outcome"}),
		TrackedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "tracked_clients",
			Help:      "Current number of client identities with window state",
		}),

		// Batch metrics
		BatchesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "processed_total",
			Help:      "Total number of batches processed",
		}),
		BatchesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "rejected_total",
			Help:      "Total number of batches rejected for size violations",
		}),
		BatchItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Total number of batch items by kind and status",
		}, []string{"kind", "status"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Event fan-out metrics
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "stream_clients",
			Help:      "Current number of connected issuance stream clients",
		}),
		EventsBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "broadcast_total",
			Help:      "Total number of issuance events broadcast",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total number of issuance events dropped on slow consumers",
		}),

		// Health metrics
		LastIssuanceTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_issuance_timestamp",
			Help:      "Unix timestamp of the last signed attestation",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordIssuance records one signed attestation.
func RecordIssuance(kind, shape string, score int, seconds float64) {
	DefaultMetrics.AttestationsIssued.WithLabelValues(kind, shape).Inc()
	DefaultMetrics.ScoreDistribution.WithLabelValues(kind).Observe(float64(score))
	DefaultMetrics.ScoringDuration.WithLabelValues(kind).Observe(seconds)
	DefaultMetrics.SignaturesProduced.Inc()
}

// RecordComputeError records a compute pipeline error.
func RecordComputeError(kind, reason string) {
	DefaultMetrics.ComputeErrors.WithLabelValues(kind, reason).Inc()
}

// RecordSigningError records a signing failure.
func RecordSigningError() {
	DefaultMetrics.SigningErrors.Inc()
}

// RecordPublish records a publish attempt. A nil error counts as a
// published proof; anything else counts as a degradation.
func RecordPublish(seconds float64, reason string, err error) {
	DefaultMetrics.PublishDuration.Observe(seconds)
	if err != nil {
		DefaultMetrics.PublishFailures.WithLabelValues(reason).Inc()
		DefaultMetrics.PublishDegraded.Inc()
		return
	}
	DefaultMetrics.ProofsPublished.Inc()
}

// RecordDecrypt records a decryption boundary call.
func RecordDecrypt(mode string, degraded bool) {
	DefaultMetrics.DecryptRequests.WithLabelValues(mode).Inc()
	if degraded {
		DefaultMetrics.DecryptDegraded.Inc()
	}
}

// RecordAdmission records an admission decision.
func RecordAdmission(allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	DefaultMetrics.AdmissionDecisions.WithLabelValues(outcome).Inc()
}

// UpdateTrackedClients updates the admission client gauge.
func UpdateTrackedClients(n int) {
	DefaultMetrics.TrackedClients.Set(float64(n))
}

// RecordBatch records an accepted batch and its per-item outcomes.
func RecordBatch() {
	DefaultMetrics.BatchesProcessed.Inc()
}

// RecordBatchRejected records a wholesale batch rejection.
func RecordBatchRejected() {
	DefaultMetrics.BatchesRejected.Inc()
}

// RecordBatchItem records one batch item outcome.
func RecordBatchItem(kind string, success bool) {
	status := "ok"
	if !success {
		status = "failed"
	}
	DefaultMetrics.BatchItems.WithLabelValues(kind, status).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordStreamClient tracks issuance stream connects and disconnects.
func RecordStreamClient(connected bool) {
	if connected {
		DefaultMetrics.StreamClients.Inc()
		return
	}
	DefaultMetrics.StreamClients.Dec()
}

// RecordEventBroadcast records issuance event fan-out.
func RecordEventBroadcast(dropped int) {
	DefaultMetrics.EventsBroadcast.Inc()
	if dropped > 0 {
		DefaultMetrics.EventsDropped.Add(float64(dropped))
	}
}

// MarkIssuanceNow sets the last issuance gauge to the given unix time.
func MarkIssuanceNow(unix int64) {
	DefaultMetrics.LastIssuanceTimestamp.Set(float64(unix))
}
