// Package router wires the HTTP surface: the widget endpoints, health, and
// metrics.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/topproz/leadchat/internal/webchat"
	"github.com/topproz/leadchat/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	WidgetHandler  *webchat.Handler
	MetricsHandler http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.WidgetHandler != nil {
		r.Get("/widget.js", cfg.WidgetHandler.HandleWidgetJS)
		r.Route("/widget", func(r chi.Router) {
			r.Get("/ws", cfg.WidgetHandler.HandleWebSocket)
			r.Post("/message", cfg.WidgetHandler.HandleMessage)
			r.Post("/upload", cfg.WidgetHandler.HandleUpload)
			r.Get("/history", cfg.WidgetHandler.HandleHistory)
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
