// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/vibeforge/internal/chat"
	"github.com/jeranaias/vibeforge/internal/model"
	"github.com/jeranaias/vibeforge/internal/segment"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxScreenshotSize caps uploaded preview images (5MB).
	MaxScreenshotSize = 5 * 1024 * 1024

	// MaxMessageLength caps a single chat message.
	MaxMessageLength = 100000

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// CHAT SERVICE INTERFACE
// ============================================================================

// ChatService is the conversation API the server fronts.
type ChatService interface {
	CreateSession() (*model.Session, error)
	Session(id string) (*model.Session, error)
	Sessions() ([]*model.Session, error)
	Messages(sessionID string) ([]*model.Message, error)
	AddScreenshot(sessionID string, png []byte) (*model.Screenshot, error)
	SendMessage(ctx context.Context, sessionID, input string) (<-chan chat.Event, error)
}

// ============================================================================
// SERVER
// ============================================================================

// Config configures the HTTP server.
type Config struct {
	Addr          string
	AllowedOrigin string
	RatePerSecond float64
	Burst         int
}

// Server exposes the chat service over HTTP with SSE streaming for
// generations.
type Server struct {
	cfg    Config
	chat   ChatService
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a server for the given chat service.
func NewServer(cfg Config, svc ChatService) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8177"
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	s := &Server{
		cfg:  cfg,
		chat: svc,
		mux:  http.NewServeMux(),
	}
	s.setupRoutes()

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		LoggingMiddleware(log.Default()),
		SecurityHeadersMiddleware(),
		CORSMiddleware(cfg.AllowedOrigin),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		middlewares = append(middlewares, RateLimitMiddleware(NewRateLimiter(cfg.RatePerSecond, burst)))
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           Chain(middlewares...)(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler (tests drive this directly).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe runs the server until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	log.Printf("SERVE: listening on %s", s.cfg.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleMessages)
	s.mux.HandleFunc("POST /api/sessions/{id}/screenshot", s.handleScreenshot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// ============================================================================
// WIRE TYPES
// ============================================================================

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// streamEvent is one SSE record on the /api/chat stream.
type streamEvent struct {
	Type         string             `json:"type"` // delta | title | done | error
	Delta        string             `json:"delta,omitempty"`
	Title        string             `json:"title,omitempty"`
	Error        string             `json:"error,omitempty"`
	Message      *model.Message     `json:"message,omitempty"`
	Segments     []segment.Segment  `json:"segments,omitempty"`
	Dependencies map[string]string  `json:"dependencies,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// handleChat starts a generation and re-streams its events as SSE.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("SERVE: invalid chat request body: %v", err)
		s.writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if len(req.Message) > MaxMessageLength {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("message exceeds maximum length of %d", MaxMessageLength))
		return
	}

	if _, err := s.chat.Session(req.SessionID); err != nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	events, err := s.chat.SendMessage(r.Context(), req.SessionID, req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		s.writeError(w, http.StatusBadRequest, "message is empty")
		return
	case errors.Is(err, chat.ErrBusy):
		s.writeError(w, http.StatusConflict, "a generation is already in flight for this session")
		return
	case err != nil:
		log.Printf("SERVE: send failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start generation")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for ev := range events {
		s.sendStreamEvent(w, flusher, toWireEvent(ev))
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// toWireEvent maps a generation event to its SSE representation.
func toWireEvent(ev chat.Event) streamEvent {
	switch ev.Kind {
	case chat.EventDelta:
		return streamEvent{Type: "delta", Delta: ev.Delta}
	case chat.EventTitle:
		return streamEvent{Type: "title", Title: ev.Title}
	case chat.EventError:
		wire := streamEvent{
			Type:         "error",
			Message:      ev.Message,
			Segments:     ev.Segments,
			Dependencies: ev.Dependencies,
		}
		if ev.Err != nil {
			wire.Error = ev.Err.Error()
		}
		return wire
	default:
		return streamEvent{
			Type:         "done",
			Message:      ev.Message,
			Segments:     ev.Segments,
			Dependencies: ev.Dependencies,
		}
	}
}

// sendStreamEvent writes one SSE record.
func (s *Server) sendStreamEvent(w http.ResponseWriter, flusher http.Flusher, ev streamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// ============================================================================
// SESSION HANDLERS
// ============================================================================

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.chat.CreateSession()
	if err != nil {
		log.Printf("SERVE: create session failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.chat.Sessions()
	if err != nil {
		log.Printf("SERVE: list sessions failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := s.chat.Session(sessionID); err != nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	messages, err := s.chat.Messages(sessionID)
	if err != nil {
		log.Printf("SERVE: list messages failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := s.chat.Session(sessionID); err != nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/png") {
		s.writeError(w, http.StatusUnsupportedMediaType, "screenshot must be image/png")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxScreenshotSize))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "screenshot too large")
		return
	}
	if len(body) == 0 {
		s.writeError(w, http.StatusBadRequest, "screenshot body is empty")
		return
	}

	shot, err := s.chat.AddScreenshot(sessionID, body)
	if err != nil {
		log.Printf("SERVE: store screenshot failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store screenshot")
		return
	}
	s.writeJSON(w, http.StatusCreated, shot)
}

// ============================================================================
// HEALTH
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// ============================================================================
// RESPONSE HELPERS
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("SERVE: failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
