package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topproz/leadchat/internal/session"
	"github.com/topproz/leadchat/internal/transcript"
	"github.com/topproz/leadchat/internal/webchat"
)

type stubController struct{ id string }

func (s *stubController) Start(ctx context.Context) (*session.Update, error) {
	return &session.Update{SessionID: s.id}, nil
}
func (s *stubController) AcceptTerms(ctx context.Context) *session.Update {
	return &session.Update{SessionID: s.id}
}
func (s *stubController) SendText(ctx context.Context, text string) (*session.Update, error) {
	return &session.Update{SessionID: s.id}, nil
}
func (s *stubController) ClickButton(ctx context.Context, b transcript.Button) (*session.Update, error) {
	return &session.Update{SessionID: s.id}, nil
}
func (s *stubController) SelectDate(ctx context.Context, d time.Time) (*session.Update, error) {
	return &session.Update{SessionID: s.id}, nil
}
func (s *stubController) SelectTime(ctx context.Context, at time.Time) (*session.Update, error) {
	return &session.Update{SessionID: s.id}, nil
}
func (s *stubController) UploadFiles(ctx context.Context, files map[string][]byte, order []string) (*session.Update, error) {
	return &session.Update{SessionID: s.id}, nil
}
func (s *stubController) Reset(ctx context.Context) (*session.Update, error) {
	return &session.Update{SessionID: s.id}, nil
}
func (s *stubController) SessionID() string              { return s.id }
func (s *stubController) History() []transcript.ChatTurn { return nil }

func newTestRouter() http.Handler {
	factory := func(identity session.Identity) webchat.Controller {
		return &stubController{id: "sess1"}
	}
	handler := webchat.NewHandler(factory, []byte("// widget"), nil)
	return New(&Config{WidgetHandler: handler})
}

func TestHealthRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWidgetRoutes(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/widget.js", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown session on the fallback endpoints still routes correctly.
	req = httptest.NewRequest(http.MethodGet, "/widget/history?session=ghost", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
