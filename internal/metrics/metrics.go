// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns every collector and registers them with one registry.
type Recorder struct {
	registry *prometheus.Registry

	ordersPlaced     prometheus.Counter
	ordersFailed     *prometheus.CounterVec
	checkoutDuration prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	tasks        *prometheus.CounterVec
	tasksDropped *prometheus.CounterVec
}

// NewRecorder creates a recorder backed by a fresh registry that also
// carries the Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of orders placed by checkout.",
		}),
		ordersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Total number of failed checkouts by reason.",
		}, []string{"reason"}),
		checkoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of successful checkouts in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Background tasks run by the dispatcher by outcome.",
		}, []string{"task", "outcome"}),
		tasksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "background_tasks_dropped_total",
			Help: "Background tasks dropped because the queue was full.",
		}, []string{"task"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.ordersPlaced,
		r.ordersFailed,
		r.checkoutDuration,
		r.httpRequests,
		r.httpDuration,
		r.tasks,
		r.tasksDropped,
	)

	return r
}

// OrderPlaced records a successful checkout.
func (r *Recorder) OrderPlaced(duration time.Duration) {
	r.ordersPlaced.Inc()
	r.checkoutDuration.Observe(duration.Seconds())
}

// OrderFailed records a failed checkout.
func (r *Recorder) OrderFailed(reason string) {
	r.ordersFailed.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(method, route string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TaskCompleted records a finished background task.
func (r *Recorder) TaskCompleted(name string, err error, _ time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.tasks.WithLabelValues(name, outcome).Inc()
}

// TaskDropped records a background task rejected by a full queue.
func (r *Recorder) TaskDropped(name string) {
	r.tasksDropped.WithLabelValues(name).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
