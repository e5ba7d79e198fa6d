package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	discoveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solo",
			Subsystem: "launcher",
			Name:      "discoveries_total",
			Help:      "Marker lookups by result (none, invalid, stale, mismatch, found, error).",
		}, []string{"result"},
	)
	terminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solo",
			Subsystem: "launcher",
			Name:      "terminations_total",
			Help:      "Prior instance terminations by mode (graceful, forced, vanished, failed).",
		}, []string{"mode"},
	)
	terminationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "solo",
			Subsystem: "launcher",
			Name:      "termination_duration_seconds",
			Help:      "Time spent stopping a prior instance.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
	)
	claims = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solo",
			Subsystem: "launcher",
			Name:      "claims_total",
			Help:      "Number of times this process claimed the instance marker.",
		},
	)
	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solo",
			Subsystem: "launcher",
			Name:      "exits_total",
			Help:      "Launcher exits by outcome.",
		}, []string{"outcome"},
	)

	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solo",
			Subsystem: "launcher",
			Name:      "state_transitions_total",
			Help:      "Number of transitions between launcher states.",
		}, []string{"from", "to"},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "solo",
			Subsystem: "launcher",
			Name:      "current_state",
			Help:      "Current launcher state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{discoveries, terminations, terminationDuration, claims, exits, stateTransitions, currentStates}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by the supervisor to record metrics.
// They no-op if Register hasn't been called.

func IncDiscovery(result string) {
	if regOK.Load() {
		discoveries.WithLabelValues(result).Inc()
	}
}

func IncTermination(mode string) {
	if regOK.Load() {
		terminations.WithLabelValues(mode).Inc()
	}
}

func ObserveTermination(seconds float64) {
	if regOK.Load() {
		terminationDuration.Observe(seconds)
	}
}

func IncClaim() {
	if regOK.Load() {
		claims.Inc()
	}
}

func IncExit(outcome string) {
	if regOK.Load() {
		exits.WithLabelValues(outcome).Inc()
	}
}

// RecordStateTransition counts from->to and moves the current_state gauge.
func RecordStateTransition(from, to string) {
	if !regOK.Load() {
		return
	}
	stateTransitions.WithLabelValues(from, to).Inc()
	if from != "" {
		currentStates.WithLabelValues(from).Set(0)
	}
	currentStates.WithLabelValues(to).Set(1)
}
