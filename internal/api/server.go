// Package api implements the game's HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/buildinfo"
	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/game"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// writeError sends a JSON error envelope with the given status. Only
// the message crosses the wire; diagnostic detail stays in the logs.
func writeError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": message}, logger)
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	game    *game.Controller
	hub     *watchHub
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server around the game controller.
func NewServer(address string, port int, controller *game.Controller, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		game:    controller,
		hub:     newWatchHub(logger),
		logger:  logger,
	}
}

// ObserveTurn satisfies game.TurnObserver: register it on the
// controller to feed completed turns into the websocket watch hub.
func (s *Server) ObserveTurn(ctx context.Context, rec game.TurnRecord) {
	s.hub.Observe(ctx, rec)
}

// routes builds the request mux. Split from Start so tests can serve
// the handler via httptest.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/interact", s.handleInteract)
	mux.HandleFunc("GET /api/watch/{userId}", s.handleWatch)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(s.withCORS(mux))
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // turns can exceed a minute with backoff; rely on handler ctx
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// withCORS lets the browser front end call the API from any origin.
// The game has no credentials or cookies, so the permissive policy
// leaks nothing.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "lifesim",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}
