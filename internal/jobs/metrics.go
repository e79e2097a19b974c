package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs       *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rateGaps   *prometheus.GaugeVec
	mismatches prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetRateGaps records the rate coverage of the last scan for period
// ("2006-01"). Blocking gaps have no earlier rate to carry forward.
func (m *Metrics) SetRateGaps(period string, gaps, blocking int) {
	if m == nil {
		return
	}
	m.rateGaps.WithLabelValues(period, "carry_forward").Set(float64(gaps - blocking))
	m.rateGaps.WithLabelValues(period, "blocking").Set(float64(blocking))
}

// SetCrossCheckMismatches records how many invoices freckle lists as unpaid
// while the ledger already holds a payment for them.
func (m *Metrics) SetCrossCheckMismatches(count int) {
	if m == nil {
		return
	}
	m.mismatches.Set(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "account_keeping_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "account_keeping_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "account_keeping_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	rateGaps := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "account_keeping_rate_gaps",
		Help: "Currencies without an exchange rate in the scanned month.",
	}, []string{"period", "kind"})
	mismatches := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "account_keeping_freckle_unpaid_with_transactions",
		Help: "Invoices unpaid in freckle that already have ledger transactions.",
	})
	registerer.MustRegister(runs, failures, duration, rateGaps, mismatches)
	return &Metrics{runs: runs, failures: failures, duration: duration, rateGaps: rateGaps, mismatches: mismatches}
}
