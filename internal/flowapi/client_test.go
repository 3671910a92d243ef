package flowapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRoutesByLoginState(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":["Hello! How can I help?"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/chatbot/newCustomerFlow", srv.URL+"/chatbot/existingCustomerFlow")

	reply, err := client.Send(context.Background(), "Hi", TypeMessage, "sess1", false)
	require.NoError(t, err)
	assert.Equal(t, "/chatbot/newCustomerFlow", gotPath)
	assert.Equal(t, "Hi", gotBody["payload"])
	assert.Equal(t, "message", gotBody["type"])
	assert.Equal(t, "sess1", gotBody["sessionId"])
	require.Len(t, reply.Message, 1)
	assert.Equal(t, "Hello! How can I help?", reply.Message[0])

	_, err = client.Send(context.Background(), "Hi", TypeMessage, "sess1", true)
	require.NoError(t, err)
	assert.Equal(t, "/chatbot/existingCustomerFlow", gotPath)
}

func TestSendButtonPayloadPassthrough(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"message":["ok"],"buttons":[{"label":"Yes"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL)

	buttonReq := json.RawMessage(`{"step":3,"choice":"yes"}`)
	reply, err := client.Send(context.Background(), buttonReq, TypeButton, "sess1", false)
	require.NoError(t, err)

	payload, ok := gotBody["payload"].(map[string]any)
	require.True(t, ok, "button payload should arrive as an object")
	assert.Equal(t, "yes", payload["choice"])
	require.Len(t, reply.Buttons, 1)
	assert.Equal(t, "Yes", reply.Buttons[0].Label)
}

func TestSendNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL)
	_, err := client.Send(context.Background(), "Hi", TypeMessage, "sess1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSendMissingMessageArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL)
	_, err := client.Send(context.Background(), "Hi", TypeMessage, "sess1", false)
	require.ErrorIs(t, err, ErrMalformedReply)
}
