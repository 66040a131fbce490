// package http implements the HTTP transport layer for the service.
// It serves the health endpoint, the Prometheus metrics endpoint and the
// websocket upgrade path that feeds the broadcast hub.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DevByZero/flowlens-api/internal/broadcast"
	"github.com/DevByZero/flowlens-api/pkg/logger/sl"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	log      *slog.Logger
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new instance of the HTTP server.
func NewServer(log *slog.Logger, hub *broadcast.Hub) *Server {
	return &Server{
		log: log,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscribers are trusted dashboards; origin policy is
			// enforced upstream by the reverse proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes sets up the router with all middleware and endpoints.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(s.withRequestID)
	mux.Use(s.logRequest)
	mux.Use(s.metricsMiddleware)

	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/", s.handleHealth)
	mux.Get("/ws", s.handleWS)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"service": "flowlens-api",
		"status":  "ok",
	})
}

// handleWS upgrades the connection, registers it with the hub and then reads
// until the client goes away. Clients never send application frames; the read
// loop only exists to observe the close.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handleWS"

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.String("op", op), sl.Err(err))
		return
	}

	client := newWSClient(conn, getRequestID(r.Context()))

	s.hub.Connect(client)
	defer func() {
		s.hub.Disconnect(client)

		if err := conn.Close(); err != nil {
			s.log.Debug("failed to close websocket", slog.String("op", op), sl.Err(err))
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// respond is a helper function to encode data to JSON and write it to the response.
func (s *Server) respond(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.log.Error("failed to encode response", sl.Err(err))
		}
	}
}
