// Package webchat exposes the widget engine over WebSocket, with HTTP
// fallbacks for sending and history. Each connection owns one session
// controller; the HTTP fallbacks reach active sessions by ID.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/topproz/leadchat/internal/session"
	"github.com/topproz/leadchat/internal/transcript"
	"github.com/topproz/leadchat/pkg/logging"
)

var errMissingButton = errors.New("webchat: button event without button payload")

// Controller is the session surface the handler drives.
type Controller interface {
	Start(ctx context.Context) (*session.Update, error)
	AcceptTerms(ctx context.Context) *session.Update
	SendText(ctx context.Context, text string) (*session.Update, error)
	ClickButton(ctx context.Context, button transcript.Button) (*session.Update, error)
	SelectDate(ctx context.Context, date time.Time) (*session.Update, error)
	SelectTime(ctx context.Context, at time.Time) (*session.Update, error)
	UploadFiles(ctx context.Context, files map[string][]byte, order []string) (*session.Update, error)
	Reset(ctx context.Context) (*session.Update, error)
	SessionID() string
	History() []transcript.ChatTurn
}

// ControllerFactory builds a controller for a connection's identity.
type ControllerFactory func(identity session.Identity) Controller

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type   string             `json:"type"` // "start", "message", "button", "accept_terms", "select_date", "select_time", "reset", "ping"
	Text   string             `json:"text,omitempty"`
	Button *transcript.Button `json:"button,omitempty"`
	Date   string             `json:"date,omitempty"` // 2006-01-02
	Time   string             `json:"time,omitempty"` // 15:04
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string                `json:"type"` // "session", "update", "history", "error", "pong"
	SessionID string                `json:"session_id,omitempty"`
	Update    *session.Update       `json:"update,omitempty"`
	Turns     []transcript.ChatTurn `json:"turns,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// Handler manages widget connections and their session controllers.
type Handler struct {
	newController ControllerFactory
	logger        *logging.Logger
	widgetJS      []byte

	mu       sync.RWMutex
	sessions map[string]Controller // sessionID -> controller
}

// NewHandler creates a widget handler.
func NewHandler(factory ControllerFactory, widgetJS []byte, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		newController: factory,
		logger:        logger,
		widgetJS:      widgetJS,
		sessions:      make(map[string]Controller),
	}
}

// HandleWebSocket upgrades to WebSocket and drives one session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func identityFromRequest(r *http.Request) session.Identity {
	email := r.URL.Query().Get("email")
	if email == "" {
		return session.Anonymous{}
	}
	return session.LoggedIn{Email: email, Login: r.URL.Query().Get("login")}
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctrl := h.newController(identityFromRequest(r))
	h.register(ctrl)
	defer h.unregister(ctrl)

	sessionID := ctrl.SessionID()
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", ctrl.SessionID(), "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}

		update, err := h.dispatch(r.Context(), ctrl, msg)
		if err != nil {
			h.logger.Error("webchat: event failed", "session_id", ctrl.SessionID(), "type", msg.Type, "error", err)
			out := OutboundMessage{Type: "error", SessionID: ctrl.SessionID(), Error: err.Error(), Update: update}
			_ = websocket.JSON.Send(conn, out)
			continue
		}
		if update == nil {
			continue
		}
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "update", SessionID: update.SessionID, Update: update})
	}
}

func (h *Handler) dispatch(ctx context.Context, ctrl Controller, msg InboundMessage) (*session.Update, error) {
	switch msg.Type {
	case "start":
		return ctrl.Start(ctx)
	case "accept_terms":
		return ctrl.AcceptTerms(ctx), nil
	case "message":
		return ctrl.SendText(ctx, msg.Text)
	case "button":
		if msg.Button == nil {
			return nil, errMissingButton
		}
		return ctrl.ClickButton(ctx, *msg.Button)
	case "select_date":
		date, err := time.Parse("2006-01-02", msg.Date)
		if err != nil {
			return nil, err
		}
		return ctrl.SelectDate(ctx, date)
	case "select_time":
		at, err := time.Parse("15:04", msg.Time)
		if err != nil {
			return nil, err
		}
		return ctrl.SelectTime(ctx, at)
	case "reset":
		oldID := ctrl.SessionID()
		update, err := ctrl.Reset(ctx)
		if err == nil {
			h.rekey(oldID, ctrl)
		}
		return update, err
	default:
		h.logger.Debug("webchat: ignoring unknown event", "type", msg.Type)
		return nil, nil
	}
}

func (h *Handler) register(ctrl Controller) {
	h.mu.Lock()
	h.sessions[ctrl.SessionID()] = ctrl
	h.mu.Unlock()
}

func (h *Handler) unregister(ctrl Controller) {
	h.mu.Lock()
	if h.sessions[ctrl.SessionID()] == ctrl {
		delete(h.sessions, ctrl.SessionID())
	}
	h.mu.Unlock()
}

// rekey moves a controller to its post-reset session ID.
func (h *Handler) rekey(oldID string, ctrl Controller) {
	h.mu.Lock()
	if h.sessions[oldID] == ctrl {
		delete(h.sessions, oldID)
	}
	h.sessions[ctrl.SessionID()] = ctrl
	h.mu.Unlock()
}

func (h *Handler) lookup(sessionID string) (Controller, bool) {
	h.mu.RLock()
	ctrl, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	return ctrl, ok
}

// HandleMessage is the HTTP fallback for sending text into an active session.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.Text == "" {
		http.Error(w, "session_id and text are required", http.StatusBadRequest)
		return
	}

	ctrl, ok := h.lookup(req.SessionID)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	update, err := ctrl.SendText(r.Context(), req.Text)
	if err != nil {
		h.logger.Error("webchat: http send failed", "session_id", req.SessionID, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(update)
}

// HandleHistory returns the transcript of an active session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	ctrl, ok := h.lookup(sessionID)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"turns": ctrl.History()})
}

// HandleUpload accepts multipart attachments for an active session and
// forwards them to the CRM file host. Files go under the "images" field.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	ctrl, ok := h.lookup(sessionID)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	files := make(map[string][]byte)
	var order []string
	for _, header := range r.MultipartForm.File["images"] {
		f, err := header.Open()
		if err != nil {
			http.Error(w, "unreadable file part", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			http.Error(w, "unreadable file part", http.StatusBadRequest)
			return
		}
		files[header.Filename] = data
		order = append(order, header.Filename)
	}
	if len(order) == 0 {
		http.Error(w, "no files in images field", http.StatusBadRequest)
		return
	}

	update, err := ctrl.UploadFiles(r.Context(), files, order)
	if err != nil {
		h.logger.Error("webchat: upload failed", "session_id", sessionID, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(update)
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}
