package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/mentra/internal/assistant"
)

// SessionCookie identifies a browser session to the built-in assistant service.
const SessionCookie = "mentra_sid"

type agentChatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	if s.agentService == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant service not configured")
		return
	}
	sid := s.sessionID(w, r)

	var req agentChatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondJSON(w, http.StatusBadRequest, assistant.Response{Error: "Invalid request body."})
		return
	}

	reply, err := s.agentService.Chat(r.Context(), sid, req.Message)
	if err != nil {
		if se, ok := assistant.AsStatusError(err); ok {
			respondJSON(w, se.Code, assistant.Response{Error: se.Message})
			return
		}
		if errors.Is(err, context.Canceled) {
			s.logger.Debug("agent chat abandoned by client", zap.String("sid", sid))
			return
		}
		respondJSON(w, http.StatusInternalServerError, assistant.Response{Error: "Agent error: " + err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, assistant.Response{Reply: reply})
}

func (s *Server) handleAgentReset(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	if s.agentService != nil {
		s.agentService.Reset(sid)
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// sessionID returns the caller's session id, issuing a cookie when absent.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}
