package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the widget conversation flow.
type ChatMetrics struct {
	repliesTotal *prometheus.CounterVec
	leadsTotal   *prometheus.CounterVec
	flowLatency  *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "replies_total",
			Help:      "Total flow-service replies by interpreted mode",
		}, []string{"mode"}),
		leadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "leads_total",
			Help:      "Total lead submissions by kind and status",
		}, []string{"kind", "status"}),
		flowLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadchat",
			Subsystem: "chat",
			Name:      "flow_latency_seconds",
			Help:      "Latency of flow-service round trips",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.repliesTotal, m.leadsTotal, m.flowLatency)
	return m
}

func (m *ChatMetrics) ObserveReply(mode string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(mode).Inc()
}

func (m *ChatMetrics) ObserveLead(kind, status string) {
	if m == nil {
		return
	}
	m.leadsTotal.WithLabelValues(kind, status).Inc()
}

func (m *ChatMetrics) ObserveFlowLatency(msgType string, seconds float64) {
	if m == nil {
		return
	}
	m.flowLatency.WithLabelValues(msgType).Observe(seconds)
}
