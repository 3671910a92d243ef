package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMetricsRegisterAndObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)

	m.ObserveReply("plain_turns")
	m.ObserveReply("pro_ranking")
	m.ObserveLead("new_customer", "ok")
	m.ObserveFlowLatency("message", 0.25)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["leadchat_chat_replies_total"])
	assert.True(t, names["leadchat_chat_leads_total"])
	assert.True(t, names["leadchat_chat_flow_latency_seconds"])
}

func TestNilChatMetricsIsNoop(t *testing.T) {
	var m *ChatMetrics
	m.ObserveReply("plain_turns")
	m.ObserveLead("new_customer", "error")
	m.ObserveFlowLatency("button", 1)
}
