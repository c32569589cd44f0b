package remoteui

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session lifecycle and dispatch outcomes. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	sessionsOpen   prometheus.Gauge
	sessionsOpened prometheus.Counter
	sessionsClosed *prometheus.CounterVec
	actions        *prometheus.CounterVec
	events         *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg when it is not
// nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "remoteui_sessions_open",
			Help: "Number of currently open remote UI sessions",
		}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remoteui_sessions_opened_total",
			Help: "Total remote UI sessions opened",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remoteui_sessions_closed_total",
			Help: "Total remote UI sessions closed by reason",
		}, []string{"reason"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remoteui_actions_total",
			Help: "Triggered actions by kind and outcome",
		}, []string{"kind", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remoteui_events_total",
			Help: "Push events emitted by method",
		}, []string{"method"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.sessionsOpen, m.sessionsOpened, m.sessionsClosed, m.actions, m.events} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

const (
	closeReasonClient   = "client"
	closeReasonRedirect = "redirect"
	closeReasonClosed   = "closed"
	closeReasonOwner    = "owner_released"
	closeReasonFailed   = "open_failed"
	closeReasonDisposed = "disposed"
)

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
	m.sessionsOpen.Inc()
}

func (m *Metrics) sessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessionsOpen.Dec()
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) action(kind, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) event(method string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(method).Inc()
}
