package simserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the backend's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Requests    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	LogsStored  prometheus.Counter
	LogsIgnored prometheus.Counter
	Queries     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hometop_sim_requests_total",
				Help: "HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hometop_sim_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		LogsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hometop_sim_logs_stored_total",
			Help: "Logs written to the log table.",
		}),
		LogsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hometop_sim_logs_ignored_total",
			Help: "Ingested logs dropped for missing ids or timestamps.",
		}),
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hometop_sim_queries_total",
				Help: "SQL queries by outcome.",
			},
			[]string{"result"},
		),
	}
	m.Registry.MustRegister(m.Requests, m.Duration, m.LogsStored, m.LogsIgnored, m.Queries)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by their chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.Duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
