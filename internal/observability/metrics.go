package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus registry and the collectors shared by the
// HTTP surface and the reporting engine.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLookups     *prometheus.CounterVec
	reportBuilds    *prometheus.HistogramVec
	reportCache     *prometheus.CounterVec
}

// NewMetrics initialises the registry and registers every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "account_keeping_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "account_keeping_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "account_keeping_rate_lookups_total",
		Help: "Exchange rate lookups by outcome.",
	}, []string{"outcome"})
	builds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "account_keeping_report_build_duration_seconds",
		Help:    "Time spent building reports by window kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "account_keeping_report_cache_total",
		Help: "Report cache lookups by kind and result.",
	}, []string{"kind", "result"})
	registry.MustRegister(requests, duration, lookups, builds, cache)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		rateLookups:     lookups,
		reportBuilds:    builds,
		reportCache:     cache,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records a request count and duration per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveRateLookup counts one resolver lookup.
func (m *Metrics) ObserveRateLookup(outcome string) {
	if m == nil {
		return
	}
	m.rateLookups.WithLabelValues(outcome).Inc()
}

// ObserveReportBuild records how long a report of kind took to compute.
func (m *Metrics) ObserveReportBuild(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.reportBuilds.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveReportCache counts a cache hit or miss for a report of kind.
func (m *Metrics) ObserveReportCache(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reportCache.WithLabelValues(kind, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
