// Package metrics exposes Prometheus metrics for the animation engine and the
// weather poller.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Assignment outcomes.
const (
	AssignAccepted = "accepted"
	AssignRejected = "rejected"
	AssignStopped  = "stopped"
)

// Fetch outcomes.
const (
	FetchOK    = "ok"
	FetchError = "error"
)

var (
	engineTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "metarglow",
		Subsystem: "engine",
		Name:      "ticks_total",
		Help:      "Animation ticks rendered",
	})

	engineTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "metarglow",
		Subsystem: "engine",
		Name:      "tick_duration_seconds",
		Help:      "Time spent evaluating channels and committing one frame",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	engineAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metarglow",
		Subsystem: "engine",
		Name:      "assignments_total",
		Help:      "Pattern assignments by outcome",
	}, []string{"result"})

	engineFaults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "metarglow",
		Subsystem: "engine",
		Name:      "faults_total",
		Help:      "Tick loop terminations caused by output failures",
	})

	weatherFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metarglow",
		Subsystem: "weather",
		Name:      "fetches_total",
		Help:      "METAR fetches by outcome",
	}, []string{"result"})

	weatherObservations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "metarglow",
		Subsystem: "weather",
		Name:      "observations",
		Help:      "Observations returned by the last METAR fetch",
	})

	stationsSkipped = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "metarglow",
		Subsystem: "weather",
		Name:      "stations_skipped",
		Help:      "Stations left untouched in the last poll cycle",
	})
)

// ObserveTick records one rendered tick.
func ObserveTick(d time.Duration) {
	engineTicks.Inc()
	engineTickDuration.Observe(d.Seconds())
}

// IncAssignment records an assignment outcome.
func IncAssignment(result string) {
	engineAssignments.WithLabelValues(result).Inc()
}

// IncFault records a tick loop fault.
func IncFault() {
	engineFaults.Inc()
}

// IncFetch records a METAR fetch outcome.
func IncFetch(result string) {
	weatherFetches.WithLabelValues(result).Inc()
}

// SetObservations sets the number of observations from the last fetch.
func SetObservations(n int) {
	weatherObservations.Set(float64(n))
}

// SetStationsSkipped sets the number of stations skipped in the last poll.
func SetStationsSkipped(n int) {
	stationsSkipped.Set(float64(n))
}
