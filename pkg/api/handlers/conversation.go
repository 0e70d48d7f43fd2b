package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/screenlake/screenlake/pkg/session"
)

// ConversationResponse is the recorded history of a session.
type ConversationResponse struct {
	SessionID string          `json:"session_id"`
	History   []session.Entry `json:"history"`
}

// Conversation returns the recent turns of a session, oldest first. An
// unknown session returns an empty history.
func (h *Handlers) Conversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	history, err := h.Store.History(r.Context(), sessionID)
	if err != nil {
		h.Log.Error("failed to load history", "session", sessionID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	if history == nil {
		history = []session.Entry{}
	}

	h.writeJSON(w, http.StatusOK, ConversationResponse{
		SessionID: sessionID,
		History:   history,
	})
}
