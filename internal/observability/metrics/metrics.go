package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for chat turns, lead
// transitions, and completion provider calls.
type ConversationMetrics struct {
	turnsTotal      *prometheus.CounterVec
	leadTransitions *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns by route and outcome",
		}, []string{"route", "outcome"}),
		leadTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "leads",
			Name:      "status_transitions_total",
			Help:      "Lead status transitions applied to sessions",
		}, []string{"from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "leads",
			Name:      "notifications_total",
			Help:      "Lead notification attempts by sink and result",
		}, []string{"sink", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "support",
			Subsystem: "llm",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "structured"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "llm",
			Name:      "completion_errors_total",
			Help:      "Failed completion provider calls",
		}, []string{"provider"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "llm",
			Name:      "fallbacks_total",
			Help:      "Completions retried on the fallback provider, by outcome",
		}, []string{"primary", "fallback", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.leadTransitions, m.notifications, m.providerLatency, m.providerErrors, m.fallbacks)
	return m
}

func (m *ConversationMetrics) ObserveTurn(route, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(route, outcome).Inc()
}

func (m *ConversationMetrics) ObserveLeadTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.leadTransitions.WithLabelValues(from, to).Inc()
}

func (m *ConversationMetrics) ObserveNotification(sink string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "delivered"
	}
	m.notifications.WithLabelValues(sink, result).Inc()
}

func (m *ConversationMetrics) ObserveCompletion(provider string, structured bool, seconds float64, err error) {
	if m == nil {
		return
	}
	label := "false"
	if structured {
		label = "true"
	}
	m.providerLatency.WithLabelValues(provider, label).Observe(seconds)
	if err != nil {
		m.providerErrors.WithLabelValues(provider).Inc()
	}
}

// ObserveFallback counts a completion handed to the fallback provider.
// outcome is "recovered", "failed" or "skipped".
func (m *ConversationMetrics) ObserveFallback(primary, fallback, outcome string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(primary, fallback, outcome).Inc()
}
