package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the application's Prometheus collectors.
type Registry struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	persistTotal    *prometheus.CounterVec
	calendarSynced  *prometheus.CounterVec
	completions     *prometheus.CounterVec
}

// New creates a registry with the HTTP, persistence and calendar collectors
// plus the Go runtime collectors.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		persistTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keladiary_persist_total",
				Help: "Store writes by storage key and outcome",
			},
			[]string{"key", "outcome"},
		),
		calendarSynced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keladiary_calendar_synced_events_total",
				Help: "Derived calendar events upserted by source",
			},
			[]string{"source"},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keladiary_chat_completions_total",
				Help: "Chat completion calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
	}

	r.registry.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.persistTotal,
		r.calendarSynced,
		r.completions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObservePersist counts one store write.
func (r *Registry) ObservePersist(key string, err error) {
	r.persistTotal.WithLabelValues(key, outcome(err)).Inc()
}

// ObserveCalendarSync counts events upserted by a reconciliation pass.
func (r *Registry) ObserveCalendarSync(source string, upserted int) {
	r.calendarSynced.WithLabelValues(source).Add(float64(upserted))
}

// ObserveCompletion counts one chat-completion call.
func (r *Registry) ObserveCompletion(provider string, err error) {
	r.completions.WithLabelValues(provider, outcome(err)).Inc()
}

// Middleware records request counts and latency per route.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			r.requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Inc()
			r.requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests and pushers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
