// Package metrics exposes dispatch and session metrics to Prometheus through
// gateway and router hooks.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bjaus/fixgate"
)

// Metrics holds the collectors. Create one per process with New.
type Metrics struct {
	// Dispatches counts dispatch results by version, message type and outcome.
	Dispatches *prometheus.CounterVec
	// Latency records dispatch duration in seconds by version and message type.
	Latency *prometheus.HistogramVec
	// SessionState is 1 for the current state of each session and 0 otherwise.
	SessionState *prometheus.GaugeVec
	// Transitions counts session state changes.
	Transitions *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixgate_dispatches_total",
				Help: "Total number of dispatch requests by outcome",
			},
			[]string{"version", "message_type", "outcome"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fixgate_dispatch_duration_seconds",
				Help:    "Time from build to transport acceptance or failure",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"version", "message_type"},
		),
		SessionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fixgate_session_state",
				Help: "Current lifecycle state of each session",
			},
			[]string{"session", "state"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixgate_session_transitions_total",
				Help: "Total number of session state changes",
			},
			[]string{"session", "to"},
		),
	}
	reg.MustRegister(m.Dispatches, m.Latency, m.SessionState, m.Transitions)
	return m
}

// GatewayOptions records every dispatch.
func (m *Metrics) GatewayOptions() []fixgate.Option {
	return []fixgate.Option{
		fixgate.WithOnSuccess(func(_ context.Context, key fixgate.TemplateKey, _ fixgate.SessionID, _ int, d time.Duration) {
			m.observe(key, fixgate.Sent, d)
		}),
		fixgate.WithOnFailure(func(_ context.Context, key fixgate.TemplateKey, o fixgate.Outcome, _ error, d time.Duration) {
			m.observe(key, o, d)
		}),
	}
}

// unknownLabel replaces the version and message type of a request that named
// no registered template, so callers cannot create series at will.
const unknownLabel = "unknown"

func (m *Metrics) observe(key fixgate.TemplateKey, o fixgate.Outcome, d time.Duration) {
	version, msgType := key.Version, key.MessageType
	if o == fixgate.TemplateNotFound {
		version, msgType = unknownLabel, unknownLabel
	}
	m.Dispatches.WithLabelValues(version, msgType, o.String()).Inc()
	m.Latency.WithLabelValues(version, msgType).Observe(d.Seconds())
}

var states = []fixgate.State{fixgate.Disconnected, fixgate.LoggingOn, fixgate.Active, fixgate.LoggingOut}

// RouterOption tracks session states.
func (m *Metrics) RouterOption() fixgate.RouterOption {
	return fixgate.WithOnStateChange(func(id fixgate.SessionID, _, to fixgate.State) {
		session := id.String()
		for _, s := range states {
			v := 0.0
			if s == to {
				v = 1
			}
			m.SessionState.WithLabelValues(session, s.String()).Set(v)
		}
		m.Transitions.WithLabelValues(session, to.String()).Inc()
	})
}
