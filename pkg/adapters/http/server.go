// Package http exposes switchboard turns over a JSON HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	switchboard "github.com/omnihelp/switchboard"
	"github.com/omnihelp/switchboard/pkg/domain"
)

// Asker is the turn surface the server needs from the switchboard.
type Asker interface {
	Ask(ctx context.Context, sessionID, query string) (*switchboard.Outcome, error)
	Reply(ctx context.Context, sessionID, reply string) (*switchboard.Outcome, error)
}

// SessionAdmin is the session surface for listing and cleanup.
type SessionAdmin interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, token string) (*domain.TurnState, error)
}

// Server handles the HTTP routes.
type Server struct {
	board    Asker
	sessions SessionAdmin
	logger   *slog.Logger
}

// TurnMeta is loosely-typed client metadata sent with a turn. It is decoded
// from the request's free-form "meta" object and attached to logs.
type TurnMeta struct {
	Channel string `mapstructure:"channel"`
	UserID  string `mapstructure:"user_id"`
	Locale  string `mapstructure:"locale"`
}

type turnRequest struct {
	SessionID string         `json:"session_id"`
	Query     string         `json:"query"`
	Meta      map[string]any `json:"meta"`
}

type replyRequest struct {
	Reply string         `json:"reply"`
	Meta  map[string]any `json:"meta"`
}

type turnResponse struct {
	SessionID string                `json:"session_id"`
	Status    switchboard.Status    `json:"status"`
	Answer    string                `json:"answer,omitempty"`
	Question  string                `json:"question,omitempty"`
	Handoff   *domain.HandoffRecord `json:"handoff,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler builds the router. metricsPath is registered with the default
// Prometheus handler when non-empty.
func NewHandler(board Asker, sessions SessionAdmin, logger *slog.Logger, metricsPath string) http.Handler {
	s := &Server{board: board, sessions: sessions, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if metricsPath != "" {
		r.Handle(metricsPath, promhttp.Handler())
	}

	r.Post("/turns", s.createTurn)
	r.Post("/turns/{sessionID}/reply", s.replyTurn)
	r.Get("/sessions", s.listSessions)
	r.Get("/sessions/{sessionID}", s.inspectSession)
	r.Delete("/sessions/{sessionID}", s.deleteSession)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	meta := s.decodeMeta(req.Meta)
	s.logger.Info("Turn received",
		"session_id", req.SessionID,
		"channel", meta.Channel,
		"user_id", meta.UserID,
	)

	out, err := s.board.Ask(r.Context(), req.SessionID, req.Query)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(out))
}

func (s *Server) replyTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Reply == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reply is required"})
		return
	}

	out, err := s.board.Reply(r.Context(), sessionID, req.Reply)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(out))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.logger.Error("Listing sessions failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list sessions"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) inspectSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	state, err := s.sessions.Resume(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
			return
		}
		s.logger.Error("Loading session failed", "session_id", sessionID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load session"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
		s.logger.Error("Deleting session failed", "session_id", sessionID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to delete session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeMeta tolerantly decodes the free-form meta object; unknown keys and
// mistyped values are dropped rather than rejected.
func (s *Server) decodeMeta(raw map[string]any) TurnMeta {
	var meta TurnMeta
	if len(raw) == 0 {
		return meta
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
	})
	if err == nil {
		if err := dec.Decode(raw); err != nil {
			s.logger.Warn("Ignoring malformed turn meta", "err", err)
		}
	}
	return meta
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
	case errors.Is(err, domain.ErrAwaitingReply):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "session is awaiting a clarification reply"})
	case errors.Is(err, domain.ErrNotAwaitingReply):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "session is not awaiting a reply"})
	default:
		s.logger.Error("Turn failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "turn failed"})
	}
}

func toResponse(out *switchboard.Outcome) turnResponse {
	return turnResponse{
		SessionID: out.SessionID,
		Status:    out.Status,
		Answer:    out.Answer,
		Question:  out.Question,
		Handoff:   out.Handoff,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
