// ============================================================================
// AIO AWS Batch Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose Prometheus metrics for the batch job engine.
//
// Metric Categories:
//
//   1. Job Counters - cumulative, monotonically increasing:
//      - aio_batch_jobs_submitted_total
//      - aio_batch_jobs_retried_total (spot-reclaim resubmissions)
//      - aio_batch_jobs_succeeded_total
//      - aio_batch_jobs_failed_total
//      - aio_batch_jobs_throttled_total
//
//   2. Performance (Histogram):
//      - aio_batch_job_latency_seconds: submission-to-terminal latency
//
//   3. Status (Gauge):
//      - aio_batch_jobs_running: current non-terminal job count
//      - aio_batch_jobs_pending: current not-yet-submitted job count
//      - aio_batch_gate_in_flight: current Rate Gate occupancy
//
// Grounded on the teacher's internal/metrics.Collector: same counter /
// histogram / gauge split, same registration-at-construction pattern, same
// /metrics HTTP exposition via promhttp.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for the batch job engine.
type Collector struct {
	jobsSubmitted prometheus.Counter
	jobsRetried   prometheus.Counter
	jobsSucceeded prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsThrottled prometheus.Counter

	jobLatency prometheus.Histogram

	jobsRunning  prometheus.Gauge
	jobsPending  prometheus.Gauge
	gateInFlight prometheus.Gauge
}

// NewCollector creates and registers a Collector against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across test runs; pass prometheus.DefaultRegisterer in
// production.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aio_batch_jobs_submitted_total",
			Help: "Total number of SubmitJob calls issued.",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aio_batch_jobs_retried_total",
			Help: "Total number of jobs resubmitted after a spot-instance reclaim.",
		}),
		jobsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aio_batch_jobs_succeeded_total",
			Help: "Total number of jobs that reached SUCCEEDED.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aio_batch_jobs_failed_total",
			Help: "Total number of jobs that reached a terminal FAILED state.",
		}),
		jobsThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aio_batch_jobs_throttled_total",
			Help: "Total number of TooManyRequestsException responses observed.",
		}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aio_batch_job_latency_seconds",
			Help:    "Elapsed time between job creation and terminal status.",
			Buckets: prometheus.DefBuckets,
		}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aio_batch_jobs_running",
			Help: "Current number of jobs in a non-terminal status.",
		}),
		jobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aio_batch_jobs_pending",
			Help: "Current number of jobs not yet submitted.",
		}),
		gateInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aio_batch_gate_in_flight",
			Help: "Current number of Rate Gate slots held.",
		}),
	}

	reg.MustRegister(
		c.jobsSubmitted, c.jobsRetried, c.jobsSucceeded, c.jobsFailed, c.jobsThrottled,
		c.jobLatency, c.jobsRunning, c.jobsPending, c.gateInFlight,
	)

	return c
}

// RecordSubmitted records a SubmitJob call.
func (c *Collector) RecordSubmitted() { c.jobsSubmitted.Inc() }

// RecordRetried records a spot-reclaim resubmission.
func (c *Collector) RecordRetried() { c.jobsRetried.Inc() }

// RecordSucceeded records a job reaching SUCCEEDED, with its end-to-end latency.
func (c *Collector) RecordSucceeded(latencySeconds float64) {
	c.jobsSucceeded.Inc()
	c.jobLatency.Observe(latencySeconds)
}

// RecordFailed records a job reaching a terminal FAILED state.
func (c *Collector) RecordFailed(latencySeconds float64) {
	c.jobsFailed.Inc()
	c.jobLatency.Observe(latencySeconds)
}

// RecordThrottled records a TooManyRequestsException response.
func (c *Collector) RecordThrottled() { c.jobsThrottled.Inc() }

// UpdateJobStats sets the current running/pending job gauges.
func (c *Collector) UpdateJobStats(running, pending int) {
	c.jobsRunning.Set(float64(running))
	c.jobsPending.Set(float64(pending))
}

// UpdateGateStats sets the current Rate Gate occupancy gauge.
func (c *Collector) UpdateGateStats(inFlight int) {
	c.gateInFlight.Set(float64(inFlight))
}

// StartServer starts a Prometheus metrics HTTP server on port, serving reg's
// metrics at /metrics.
func StartServer(port int, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
