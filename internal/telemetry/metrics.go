package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/capstan-io/capstan/internal/events"
	"github.com/capstan-io/capstan/internal/urn"
)

// Metrics holds the coordinator's Prometheus collectors.
type Metrics struct {
	ResourcesByState *prometheus.GaugeVec
	EventsPublished  *prometheus.CounterVec
	SessionState     *prometheus.GaugeVec

	ProviderCallsInFlight prometheus.Gauge
	ProviderCallsTotal    *prometheus.CounterVec

	mu        sync.Mutex
	lastState map[urn.URN]string
}

// NewMetrics builds and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResourcesByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "capstan",
			Name:      "resources",
			Help:      "Resources currently in each lifecycle state.",
		}, []string{"state"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capstan",
			Name:      "events_published_total",
			Help:      "Events published to the session stream, by kind.",
		}, []string{"kind"}),
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "capstan",
			Name:      "session_state",
			Help:      "1 for the session's current lifecycle state, 0 otherwise.",
		}, []string{"state"}),
		ProviderCallsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "capstan",
			Name:      "provider_calls_in_flight",
			Help:      "Provider calls currently executing.",
		}),
		ProviderCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "capstan",
			Name:      "provider_calls_total",
			Help:      "Provider calls issued, by provider package.",
		}, []string{"provider"}),
		lastState: make(map[urn.URN]string),
	}

	reg.MustRegister(
		m.ResourcesByState,
		m.EventsPublished,
		m.SessionState,
		m.ProviderCallsInFlight,
		m.ProviderCallsTotal,
	)
	return m
}

// Observe updates collectors from one session event.
func (m *Metrics) Observe(e events.Event) {
	m.EventsPublished.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case events.KindResourceStatus:
		m.mu.Lock()
		if prev, ok := m.lastState[e.URN]; ok {
			m.ResourcesByState.WithLabelValues(prev).Dec()
		}
		m.lastState[e.URN] = e.State
		m.mu.Unlock()
		m.ResourcesByState.WithLabelValues(e.State).Inc()
	case events.KindSessionStatus:
		m.SessionState.Reset()
		m.SessionState.WithLabelValues(e.State).Set(1)
	}
}

// Watch consumes a subscription in the background, updating collectors
// until the stream closes.
func (m *Metrics) Watch(sub *events.Subscription) {
	go func() {
		for e := range sub.Events() {
			m.Observe(e)
		}
	}()
}
