package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/spellclash/relay/relay/service"
)

// Relay is the read side the API needs from the relay core.
type Relay interface {
	Snapshot() service.Snapshot
}

// Server is the relay's HTTP server: the /ws upgrade plus read-only
// inspection endpoints.
type Server struct {
	relay     Relay
	ws        http.Handler
	router    *mux.Router
	startedAt time.Time
}

// NewServer wires the router. ws handles the websocket upgrade; it is kept
// as an opaque http.Handler so tests can stub it out.
func NewServer(relay Relay, ws http.Handler) *Server {
	s := &Server{
		relay:     relay,
		ws:        ws,
		router:    mux.NewRouter(),
		startedAt: time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{code}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/clients", s.handleListClients).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	if s.ws != nil {
		s.router.Handle("/ws", s.ws)
	}
}

// ServeHTTP implements http.Handler.
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

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	snap := s.relay.Snapshot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(snap.Rooms),
		"rooms": snap.Rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	snap := s.relay.Snapshot()
	for _, room := range snap.Rooms {
		if room.Code == code {
			respondJSON(w, http.StatusOK, room)
			return
		}
	}
	respondError(w, http.StatusNotFound, "Room not found")
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	snap := s.relay.Snapshot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(snap.Clients),
		"clients": snap.Clients,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.relay.Snapshot()
	respondJSON(w, http.StatusOK, snap.Stats)
}
