// Package metrics exports transition outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evanschultz/laneboard/internal/app"
)

// Recorder observes settled transitions. It owns a private registry so
// several recorders can coexist in one process.
type Recorder struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewRecorder constructs a recorder with its metrics registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laneboard",
			Name:      "transitions_total",
			Help:      "Settled transition requests by result and destination lane.",
		},
		[]string{"result", "lane"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "laneboard",
			Name:      "transition_duration_seconds",
			Help:      "Time from request to settled outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"result"},
	)
	registry.MustRegister(transitions, duration)
	return &Recorder{
		registry:    registry,
		transitions: transitions,
		duration:    duration,
	}
}

// ObserveTransition implements app.TransitionObserver.
func (r *Recorder) ObserveTransition(outcome app.Outcome, elapsed time.Duration) {
	lane := outcome.Request.Destination.Name()
	if lane == "" {
		lane = "unknown"
	}
	result := string(outcome.Result)
	r.transitions.WithLabelValues(result, lane).Inc()
	r.duration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// Registry exposes the backing registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

var _ app.TransitionObserver = (*Recorder)(nil)
