// Package metrics exposes the control plane's Prometheus instrumentation:
// package-level collectors registered at init, with a Handler for mounting
// on /metrics and a Timer helper for histogram observations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/janitord/janitor/internal/api"
)

var (
	// Queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "janitor_queue_depth",
			Help: "Number of queue entries waiting for assignment, by bucket",
		},
		[]string{"bucket"},
	)

	QueueAssignDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "janitor_queue_assign_duration_seconds",
			Help:    "Time taken to atomically assign a queue entry to a worker",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueueEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janitor_queue_enqueued_total",
			Help: "Total number of candidates enqueued, by bucket",
		},
		[]string{"bucket"},
	)

	// Active-run metrics
	ActiveRunsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "janitor_active_runs_total",
			Help: "Number of runs currently in a non-terminal state, by state",
		},
		[]string{"state"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "janitor_run_duration_seconds",
			Help:    "Wall-clock duration of a finished run, by outcome",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"outcome"},
	)

	RunsReapedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janitor_runs_reaped_total",
			Help: "Total number of runs force-transitioned by the reaper, by reason",
		},
		[]string{"reason"},
	)

	// Scheduler metrics
	SchedulerRecomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "janitor_scheduler_recompute_duration_seconds",
			Help:    "Time taken for a scheduler recompute pass across all codebases",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulerCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janitor_scheduler_candidates_total",
			Help: "Total number of candidates produced by the scheduler, by codebase",
		},
		[]string{"codebase"},
	)

	// Result ingestion metrics
	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "janitor_ingest_duration_seconds",
			Help:    "Time taken to validate and persist a finish report",
			Buckets: prometheus.DefBuckets,
		},
	)

	IngestResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janitor_ingest_results_total",
			Help: "Total number of finish reports ingested, by classification",
		},
		[]string{"classification"},
	)

	ArtifactBytesStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "janitor_artifact_bytes_stored_total",
			Help: "Total bytes written to the artifact store (post-dedup)",
		},
	)

	// Publisher metrics
	PublishDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janitor_publish_decisions_total",
			Help: "Total number of publish decisions made, by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	PublishRateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janitor_publish_rate_limited_total",
			Help: "Total number of publish attempts deferred by a rate-limit bucket",
		},
		[]string{"bucket"},
	)

	RescanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "janitor_rescan_duration_seconds",
			Help:    "Time taken for a merge-proposal rescan pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	OpenProposalsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "janitor_open_proposals_total",
			Help: "Number of open merge proposals tracked, by status",
		},
		[]string{"status"},
	)

	// HTTP API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "janitor_api_requests_total",
			Help: "Total number of API requests, by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "janitor_api_request_duration_seconds",
			Help:    "API request duration in seconds, by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(QueueAssignDuration)
	prometheus.MustRegister(QueueEnqueuedTotal)

	prometheus.MustRegister(ActiveRunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunsReapedTotal)

	prometheus.MustRegister(SchedulerRecomputeDuration)
	prometheus.MustRegister(SchedulerCandidatesTotal)

	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(IngestResultsTotal)
	prometheus.MustRegister(ArtifactBytesStored)

	prometheus.MustRegister(PublishDecisionsTotal)
	prometheus.MustRegister(PublishRateLimitedTotal)
	prometheus.MustRegister(RescanDuration)
	prometheus.MustRegister(OpenProposalsTotal)

	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus scrape handler for mounting on /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RouteHandler mounts the scrape endpoint as an api.Handler, so it can be
// passed to httpserver.WithHandlers alongside runnerapi.Handler.
type RouteHandler struct{}

// Routes implements api.Handler.
func (RouteHandler) Routes(r api.Router) {
	r.Mount("/metrics", Handler())
}

// Timer measures elapsed time for histogram observations.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
