// Package metrics exposes Prometheus instrumentation for the play/rec
// orchestrator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the orchestrator's Prometheus counters and gauges on a
// private registry.
type Metrics struct {
	registry          *prometheus.Registry
	callsAnswered     prometheus.Counter
	recordingsStarted prometheus.Counter
	completions       prometheus.Counter
	lateRecordStops   prometheus.Counter
	activeCalls       prometheus.Gauge
}

// New creates and registers the orchestrator metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	callsAnswered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playrec_calls_answered_total",
		Help: "Total number of inbound legs answered",
	})
	recordingsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playrec_recordings_started_total",
		Help: "Total number of calls admitted for recording by the rate gate",
	})
	completions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playrec_completions_total",
		Help: "Total number of completion callbacks delivered",
	})
	lateRecordStops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playrec_late_record_stops_total",
		Help: "Total number of record-stop events arriving after hangup",
	})
	activeCalls := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playrec_active_calls",
		Help: "Number of calls currently tracked by the registry",
	})

	registry.MustRegister(
		callsAnswered,
		recordingsStarted,
		completions,
		lateRecordStops,
		activeCalls,
	)

	return &Metrics{
		registry:          registry,
		callsAnswered:     callsAnswered,
		recordingsStarted: recordingsStarted,
		completions:       completions,
		lateRecordStops:   lateRecordStops,
		activeCalls:       activeCalls,
	}
}

// IncCallsAnswered increments the answered-calls counter.
func (m *Metrics) IncCallsAnswered() {
	m.callsAnswered.Inc()
}

// IncRecordingsStarted increments the admitted-recordings counter.
func (m *Metrics) IncRecordingsStarted() {
	m.recordingsStarted.Inc()
}

// IncCompletions increments the delivered-completions counter.
func (m *Metrics) IncCompletions() {
	m.completions.Inc()
}

// IncLateRecordStops increments the late record-stop counter.
func (m *Metrics) IncLateRecordStops() {
	m.lateRecordStops.Inc()
}

// SetActiveCalls sets the active-calls gauge.
func (m *Metrics) SetActiveCalls(n int) {
	m.activeCalls.Set(float64(n))
}

// Handler returns an http.Handler serving the private registry.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
