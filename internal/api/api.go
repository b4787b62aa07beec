// Package api exposes the engine's read/control surface over HTTP: whale,
// trade, position, and basket listings; aggregate analytics; health and
// Prometheus metrics; and control operations (pause, resume, status,
// cancel-all, per-position close). Grounded on 0xtitan6-polymarket-mm's
// internal/api (stdlib net/http + http.ServeMux, gorilla/websocket hub) —
// no example repo in the pack reaches for a router library, so stdlib
// ServeMux is the idiomatic choice here (DESIGN.md).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/database"
	"github.com/web3guy0/polybot/internal/metrics"
)

// Pauser is the engine control surface shared by the copy engine and
// position monitor's pause flag.
type Pauser interface {
	Pause()
	Resume()
	Paused() bool
}

// OrderCanceller cancels every open order on the venue. Satisfied by
// *exec.Client.
type OrderCanceller interface {
	CancelAllOrders() error
}

// PositionCloser force-exits a single open position. Satisfied by
// *positionmonitor.Monitor.
type PositionCloser interface {
	ForceClose(positionID uuid.UUID) error
}

// Server is the HTTP/WebSocket API surface (SPEC_FULL.md §6).
type Server struct {
	db        *database.Database
	pauser    Pauser
	canceller OrderCanceller
	closer    PositionCloser
	authToken string
	hub       *Hub
	server    *http.Server
}

// New builds the API server. canceller and closer may be nil (routes that
// depend on them respond 500 rather than panicking); authToken empty
// disables bearer-token auth on protected routes.
func New(addr string, db *database.Database, pauser Pauser, canceller OrderCanceller, closer PositionCloser, authToken string) *Server {
	hub := NewHub()
	s := &Server{db: db, pauser: pauser, canceller: canceller, closer: closer, authToken: authToken, hub: hub}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) { serveWebSocket(hub, w, r) })

	mux.Handle("/whales", s.protect(s.handleWhales))
	mux.Handle("/whales/", s.protect(s.handleWhaleTrades))
	mux.Handle("/positions", s.protect(s.handlePositions))
	mux.Handle("/baskets", s.protect(s.handleBaskets))
	mux.Handle("/analytics", s.protect(s.handleAnalytics))

	mux.Handle("/control/status", s.protect(s.handleStatus))
	mux.Handle("/control/pause", s.protect(s.handlePause))
	mux.Handle("/control/resume", s.protect(s.handleResume))
	mux.Handle("/control/cancel-all", s.protect(s.handleCancelAll))
	mux.Handle("/control/positions/", s.protect(s.handleClosePosition))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Run starts the WebSocket hub and HTTP server, blocking until the server
// stops. Shuts down gracefully when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("api: graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", s.server.Addr).Msg("🌐 HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Broadcast pushes a dashboard event to every connected WebSocket client.
// Exported so the rest of the engine (copy engine, fill poller, position
// monitor, pipeline) can push updates without importing the Hub type.
func (s *Server) Broadcast(eventType string, data interface{}) {
	s.hub.Broadcast(eventType, data)
}

// protect enforces the static bearer token on every route but /health,
// /metrics, and /ws when one is configured; a no-op when authToken is empty.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			h(w, r)
			return
		}
		authz := r.Header.Get("Authorization")
		if authz != "Bearer "+s.authToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics refreshes the live gauges from the store immediately
// before delegating to promhttp, so active_whales/open_positions are never
// more than one scrape stale.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if whales, err := s.db.GetActiveWhales(); err == nil {
		metrics.ActiveWhales.Set(float64(len(whales)))
	}
	if count, err := s.db.CountOpenPositions(); err == nil {
		metrics.OpenPositions.Set(float64(count))
	}
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleWhales(w http.ResponseWriter, r *http.Request) {
	whales, err := s.db.GetActiveWhales()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, whales)
}

// handleWhaleTrades serves GET /whales/{address}/trades.
func (s *Server) handleWhaleTrades(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "trades" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	whale, err := s.db.GetWhaleByAddress(parts[1])
	if err != nil {
		writeError(w, http.StatusNotFound, "whale not found")
		return
	}
	trades, err := s.db.GetTradesByWhale(whale.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.db.GetOpenPositions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleBaskets(w http.ResponseWriter, r *http.Request) {
	baskets, err := s.db.GetActiveBaskets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, baskets)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"paused": s.pauser.Paused()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "POST required")
		return
	}
	s.pauser.Pause()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "POST required")
		return
	}
	s.pauser.Resume()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "POST required")
		return
	}
	if s.canceller == nil {
		writeError(w, http.StatusInternalServerError, "no trading client configured")
		return
	}
	if err := s.canceller.CancelAllOrders(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleClosePosition serves POST /control/positions/{id}/close.
func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "POST required")
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "close" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}
	if s.closer == nil {
		writeError(w, http.StatusInternalServerError, "no position closer configured")
		return
	}
	if err := s.closer.ForceClose(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closing"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("api: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
