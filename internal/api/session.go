package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/koopa0/llamagate/internal/session"
)

// sessionHandler serves session inspection and synchronization.
type sessionHandler struct {
	sessions   *session.Store
	sessionCfg session.Config
	logger     *slog.Logger
}

type sessionResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []session.Message `json:"messages"`
	Exists    bool              `json:"exists"`
}

type sessionIDError struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id"`
}

type removeSessionResponse struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

// get handles GET /sessions/{session_id}. An unknown id is not an error;
// the response carries exists=false and an empty history.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	sess, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{
			SessionID: id,
			Messages:  []session.Message{},
			Exists:    false,
		}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID,
		Messages:  sess.Messages,
		Exists:    true,
	}, h.logger)
}

// clear handles DELETE /sessions/{session_id}/messages: the history is
// emptied but the session (and its pinned system prompt) stays.
func (h *sessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	if _, ok := h.sessions.Get(id); !ok {
		writeJSON(w, http.StatusBadRequest, sessionIDError{Error: "session not found", SessionID: id}, h.logger)
		return
	}
	h.sessions.ClearHistory(id)
	writeJSON(w, http.StatusOK, removeSessionResponse{SessionID: id, Cleared: true}, h.logger)
}

// remove handles DELETE /sessions/{session_id}.
func (h *sessionHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	if !h.sessions.Remove(id) {
		writeJSON(w, http.StatusBadRequest, sessionIDError{Error: "session not found", SessionID: id}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, removeSessionResponse{SessionID: id, Cleared: true}, h.logger)
}

type syncRequest struct {
	SessionID string            `json:"session_id"`
	Messages  []session.Message `json:"messages"`
}

type syncResponse struct {
	SessionID    string `json:"session_id"`
	Synced       bool   `json:"synced"`
	MessageCount int    `json:"message_count"`
}

// sync handles POST /sessions/sync: a client pushes its full local history
// and the server-side session is replaced with it, subject to the usual
// trim limit. Decoding into session.Message strips any extra client fields.
func (h *sessionHandler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.SessionID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "session_id is required", h.logger)
		return
	}

	messages := make([]session.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, session.Normalize(m))
	}

	sess := h.sessions.Sync(req.SessionID, messages, h.sessionCfg)
	writeJSON(w, http.StatusOK, syncResponse{
		SessionID:    sess.ID,
		Synced:       true,
		MessageCount: len(sess.Messages),
	}, h.logger)
}
