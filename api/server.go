package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/stone-paper-relay/game/engine"
	"github.com/wricardo/stone-paper-relay/game/room"
	"github.com/wricardo/stone-paper-relay/game/service"
)

// statusTimeout bounds how long a status request waits for the relay loop
const statusTimeout = 2 * time.Second

// Relay is the part of the websocket hub the HTTP surface needs
type Relay interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Status(ctx context.Context) (service.Status, error)
}

// Server represents the HTTP surface of the relay
type Server struct {
	relay  Relay
	router *mux.Router
	logger *zap.Logger
}

// NewServer creates a new API server
func NewServer(relay Relay, logger *zap.Logger) *Server {
	s := &Server{
		relay:  relay,
		router: mux.NewRouter(),
		logger: logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	// Upgrade requests are accepted on any path
	s.router.MatcherFunc(isWebSocketUpgrade).HandlerFunc(s.relay.ServeWS)

	// Routes stay flat so a method mismatch answers 405
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rooms", s.handleRooms).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rules", s.handleRules).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func isWebSocketUpgrade(r *http.Request, _ *mux.RouteMatch) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		headerContainsToken(r.Header.Get("Connection"), "upgrade")
}

func headerContainsToken(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) status(r *http.Request) (service.Status, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	st, err := s.relay.Status(ctx)
	if err != nil {
		s.logger.Warn("status unavailable", zap.Error(err))
		return service.Status{}, false
	}
	return st, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.status(r)
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}

	if r.URL.Query().Get("rooms") != "true" {
		st.RoomList = nil
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	st, ok := s.status(r)
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}

	rooms := st.RoomList
	if rooms == nil {
		rooms = []room.Summary{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"choices": engine.Choices,
		"rules":   engine.Rules(),
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}
