package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the panel host. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ActivePanels            prometheus.Gauge
	PanelEvents             *prometheus.CounterVec
	WSMessages              *prometheus.CounterVec
	WSWriteErrors           *prometheus.CounterVec
	AgentRequests           *prometheus.CounterVec
	AgentRequestLatency     prometheus.Histogram
	Completions             *prometheus.CounterVec
	CompletionDisagreements prometheus.Counter
	AssistantRequests       *prometheus.CounterVec

	latency *latencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActivePanels: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_panels",
			Help:      "Number of connected agent panels.",
		}),
		PanelEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panel_events_total",
			Help:      "Panel lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		WSWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_write_errors_total",
			Help:      "WebSocket write failures by reason.",
		}, []string{"reason"}),
		AgentRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_requests_total",
			Help:      "Panel requests to the assistant by terminal outcome.",
		}, []string{"outcome"}),
		AgentRequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_request_latency_ms",
			Help:      "Latency of panel requests to the assistant in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}),
		Completions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Day completions by trigger (index or phrase).",
		}, []string{"trigger"}),
		CompletionDisagreements: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_disagreements_total",
			Help:      "Phrase-triggered completions while day tasks were still open.",
		}),
		AssistantRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_requests_total",
			Help:      "Requests served by the built-in assistant endpoint by outcome.",
		}, []string{"outcome"}),
		latency: newLatencyWindow(256),
	}
}

// ObserveRequest records one finished panel request.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AgentRequests.WithLabelValues(outcome).Inc()
	ms := float64(d.Milliseconds())
	m.AgentRequestLatency.Observe(ms)
	m.latency.Observe(outcome, ms)
}

func (m *Metrics) ObserveCompletion(trigger string) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ObserveDisagreement() {
	if m == nil {
		return
	}
	m.CompletionDisagreements.Inc()
}

func (m *Metrics) ObservePanelEvent(event string) {
	if m == nil {
		return
	}
	m.PanelEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveWSWriteError(reason string) {
	if m == nil {
		return
	}
	m.WSWriteErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveAssistantRequest(outcome string) {
	if m == nil {
		return
	}
	m.AssistantRequests.WithLabelValues(outcome).Inc()
}

// SnapshotLatency returns rolling latency percentiles per request outcome.
func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.latency.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
