package webchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topproz/leadchat/internal/session"
	"github.com/topproz/leadchat/internal/transcript"
)

// mockController records calls and returns canned updates.
type mockController struct {
	id       string
	history  []transcript.ChatTurn
	sent     []string
	clicked  []transcript.Button
	uploaded []string
	sendErr  error
}

func (m *mockController) Start(ctx context.Context) (*session.Update, error) {
	return &session.Update{SessionID: m.id}, nil
}

func (m *mockController) AcceptTerms(ctx context.Context) *session.Update {
	return &session.Update{SessionID: m.id}
}

func (m *mockController) SendText(ctx context.Context, text string) (*session.Update, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, text)
	turn := transcript.ChatTurn{Sender: transcript.SenderUser, Text: text}
	m.history = append(m.history, turn)
	return &session.Update{SessionID: m.id, Turns: []transcript.ChatTurn{turn}}, nil
}

func (m *mockController) ClickButton(ctx context.Context, button transcript.Button) (*session.Update, error) {
	m.clicked = append(m.clicked, button)
	return &session.Update{SessionID: m.id}, nil
}

func (m *mockController) SelectDate(ctx context.Context, date time.Time) (*session.Update, error) {
	return &session.Update{SessionID: m.id}, nil
}

func (m *mockController) SelectTime(ctx context.Context, at time.Time) (*session.Update, error) {
	return &session.Update{SessionID: m.id}, nil
}

func (m *mockController) UploadFiles(ctx context.Context, files map[string][]byte, order []string) (*session.Update, error) {
	m.uploaded = append(m.uploaded, order...)
	return &session.Update{SessionID: m.id, PendingInput: "1 Images, 0 Videos"}, nil
}

func (m *mockController) Reset(ctx context.Context) (*session.Update, error) {
	m.id = m.id + "-reset"
	m.history = nil
	return &session.Update{SessionID: m.id}, nil
}

func (m *mockController) SessionID() string { return m.id }

func (m *mockController) History() []transcript.ChatTurn { return m.history }

func newTestHandler(ctrl *mockController) *Handler {
	factory := func(identity session.Identity) Controller { return ctrl }
	return NewHandler(factory, []byte("// widget"), nil)
}

func TestHandleMessageFallback(t *testing.T) {
	ctrl := &mockController{id: "sess1"}
	h := newTestHandler(ctrl)
	h.register(ctrl)

	body, _ := json.Marshal(map[string]string{"session_id": "sess1", "text": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/widget/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"hello"}, ctrl.sent)

	var update session.Update
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &update))
	assert.Equal(t, "sess1", update.SessionID)
	require.Len(t, update.Turns, 1)
	assert.Equal(t, "hello", update.Turns[0].Text)
}

func TestHandleMessageUnknownSession(t *testing.T) {
	h := newTestHandler(&mockController{id: "sess1"})

	body, _ := json.Marshal(map[string]string{"session_id": "ghost", "text": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/widget/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMessageValidation(t *testing.T) {
	h := newTestHandler(&mockController{id: "sess1"})

	req := httptest.NewRequest(http.MethodPost, "/widget/message", bytes.NewReader([]byte(`{"text":"hi"}`)))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/widget/message", bytes.NewReader([]byte(`not json`)))
	rec = httptest.NewRecorder()
	h.HandleMessage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessageSendFailure(t *testing.T) {
	ctrl := &mockController{id: "sess1", sendErr: errors.New("flow down")}
	h := newTestHandler(ctrl)
	h.register(ctrl)

	body, _ := json.Marshal(map[string]string{"session_id": "sess1", "text": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/widget/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	ctrl := &mockController{id: "sess1", history: []transcript.ChatTurn{
		{Sender: transcript.SenderUser, Text: "Hi"},
		{Sender: transcript.SenderBot, Text: "Hello! How can I help?"},
	}}
	h := newTestHandler(ctrl)
	h.register(ctrl)

	req := httptest.NewRequest(http.MethodGet, "/widget/history?session=sess1", nil)
	rec := httptest.NewRecorder()
	h.HandleHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Turns []transcript.ChatTurn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, "Hello! How can I help?", resp.Turns[1].Text)
}

func TestHandleHistoryRequiresSession(t *testing.T) {
	h := newTestHandler(&mockController{id: "sess1"})

	req := httptest.NewRequest(http.MethodGet, "/widget/history", nil)
	rec := httptest.NewRecorder()
	h.HandleHistory(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatch(t *testing.T) {
	ctrl := &mockController{id: "sess1"}
	h := newTestHandler(ctrl)
	ctx := context.Background()

	update, err := h.dispatch(ctx, ctrl, InboundMessage{Type: "start"})
	require.NoError(t, err)
	assert.Equal(t, "sess1", update.SessionID)

	_, err = h.dispatch(ctx, ctrl, InboundMessage{Type: "button", Button: &transcript.Button{Label: "Find a Pro"}})
	require.NoError(t, err)
	require.Len(t, ctrl.clicked, 1)
	assert.Equal(t, "Find a Pro", ctrl.clicked[0].Label)

	_, err = h.dispatch(ctx, ctrl, InboundMessage{Type: "button"})
	require.ErrorIs(t, err, errMissingButton)

	_, err = h.dispatch(ctx, ctrl, InboundMessage{Type: "select_date", Date: "2026-09-15"})
	require.NoError(t, err)

	_, err = h.dispatch(ctx, ctrl, InboundMessage{Type: "select_date", Date: "next tuesday"})
	require.Error(t, err)

	_, err = h.dispatch(ctx, ctrl, InboundMessage{Type: "select_time", Time: "14:30"})
	require.NoError(t, err)

	update, err = h.dispatch(ctx, ctrl, InboundMessage{Type: "bogus"})
	require.NoError(t, err)
	assert.Nil(t, update)
}

func TestDispatchResetRekeysSession(t *testing.T) {
	ctrl := &mockController{id: "sess1"}
	h := newTestHandler(ctrl)
	h.register(ctrl)

	update, err := h.dispatch(context.Background(), ctrl, InboundMessage{Type: "reset"})
	require.NoError(t, err)
	assert.Equal(t, "sess1-reset", update.SessionID)

	_, ok := h.lookup("sess1")
	assert.False(t, ok)
	_, ok = h.lookup("sess1-reset")
	assert.True(t, ok)
}

func TestIdentityFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/widget/ws", nil)
	assert.False(t, identityFromRequest(req).IsLoggedIn())

	req = httptest.NewRequest(http.MethodGet, "/widget/ws?email=ada%40example.com&login=login-123", nil)
	id := identityFromRequest(req)
	assert.True(t, id.IsLoggedIn())
	assert.Equal(t, "ada@example.com", id.EmailID())
	assert.Equal(t, "login-123", id.LoginID())
}

func TestHandleUpload(t *testing.T) {
	ctrl := &mockController{id: "sess1"}
	h := newTestHandler(ctrl)
	h.register(ctrl)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("images", "deck.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpg-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/widget/upload?session=sess1", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.HandleUpload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"deck.jpg"}, ctrl.uploaded)

	var update session.Update
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &update))
	assert.Equal(t, "1 Images, 0 Videos", update.PendingInput)
}

func TestHandleUploadRequiresFiles(t *testing.T) {
	ctrl := &mockController{id: "sess1"}
	h := newTestHandler(ctrl)
	h.register(ctrl)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/widget/upload?session=sess1", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.HandleUpload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWidgetJS(t *testing.T) {
	h := newTestHandler(&mockController{id: "sess1"})

	req := httptest.NewRequest(http.MethodGet, "/widget.js", nil)
	rec := httptest.NewRecorder()
	h.HandleWidgetJS(rec, req)

	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))
	assert.Equal(t, "// widget", rec.Body.String())
}
