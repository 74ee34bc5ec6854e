// Package metrics exposes Prometheus collectors for screening passes,
// inference calls, and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/patrol/pkg/middleware"
)

const namespace = "patrol"

// Collector owns every metric the service records. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	inferenceCalls   *prometheus.CounterVec
	inferenceLatency *prometheus.HistogramVec
	quarantines      prometheus.Counter
	backoffs         prometheus.Counter
	backoffSeconds   prometheus.Counter
	passesActive     *prometheus.GaugeVec
	passesFinished   *prometheus.CounterVec
	itemsScreened    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
}

// New creates a Collector on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: reg,
		inferenceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_calls_total",
			Help:      "Inference calls partitioned by stage and outcome.",
		}, []string{"stage", "outcome"}),
		inferenceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_call_duration_seconds",
			Help:      "Inference call latency partitioned by stage.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		quarantines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_quarantines_total",
			Help:      "Credentials removed from a run's pool.",
		}),
		backoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_backoffs_total",
			Help:      "Backoff sleeps taken after a rate-limited call.",
		}),
		backoffSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_backoff_seconds_total",
			Help:      "Total time spent sleeping after rate-limited calls.",
		}),
		passesActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "passes_active",
			Help:      "Passes in progress, partitioned by pass.",
		}, []string{"pass"}),
		passesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_finished_total",
			Help:      "Passes that reached a terminal state, partitioned by pass and state.",
		}, []string{"pass", "state"}),
		itemsScreened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_screened_total",
			Help:      "Items that received a label, partitioned by level.",
		}, []string{"level"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests partitioned by method and status code.",
		}, []string{"method", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency partitioned by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.inferenceCalls,
		c.inferenceLatency,
		c.quarantines,
		c.backoffs,
		c.backoffSeconds,
		c.passesActive,
		c.passesFinished,
		c.itemsScreened,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// Registry returns the underlying registry for tests and custom exposition.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InferenceCall records one call outcome. Outcome is "ok" or a failure disposition.
func (c *Collector) InferenceCall(stage, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.inferenceCalls.WithLabelValues(stage, outcome).Inc()
	c.inferenceLatency.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// Quarantined records a credential removal.
func (c *Collector) Quarantined() {
	if c == nil {
		return
	}
	c.quarantines.Inc()
}

// Backoff records a rate-limit sleep of duration d.
func (c *Collector) Backoff(d time.Duration) {
	if c == nil {
		return
	}
	c.backoffs.Inc()
	c.backoffSeconds.Add(d.Seconds())
}

// PassStarted marks a screen or refine pass as active.
func (c *Collector) PassStarted(pass string) {
	if c == nil {
		return
	}
	c.passesActive.WithLabelValues(pass).Inc()
}

// PassFinished marks a pass as no longer active and counts its terminal state.
func (c *Collector) PassFinished(pass, state string) {
	if c == nil {
		return
	}
	c.passesActive.WithLabelValues(pass).Dec()
	c.passesFinished.WithLabelValues(pass, state).Inc()
}

// Screened counts one labelled item at the given level.
func (c *Collector) Screened(level string) {
	if c == nil {
		return
	}
	c.itemsScreened.WithLabelValues(level).Inc()
}

// Middleware counts and times every request passing through it.
func (c *Collector) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := middleware.NewStatusWriter(w)
			next.ServeHTTP(sw, r)

			c.httpRequests.WithLabelValues(r.Method, strconv.Itoa(sw.Status)).Inc()
			c.httpLatency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
