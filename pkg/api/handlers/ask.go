package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/screenlake/screenlake/pkg/agent"
	"github.com/screenlake/screenlake/pkg/api/metrics"
)

// AskRequest is an incoming natural-language question.
type AskRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// AskResponse is the answered turn.
type AskResponse struct {
	SessionID string             `json:"session_id"`
	Answer    string             `json:"answer"`
	SQL       string             `json:"sql,omitempty"`
	Columns   []string           `json:"columns,omitempty"`
	Rows      [][]string         `json:"rows,omitempty"`
	Truncated bool               `json:"truncated,omitempty"`
	State     string             `json:"state"`
	Code      string             `json:"code,omitempty"`
	Hint      string             `json:"hint,omitempty"`
	Score     float64            `json:"score,omitempty"`
	Attempts  int                `json:"attempts"`
	Trace     []agent.TraceEntry `json:"trace,omitempty"`
}

// Ask answers one question, creating a session when the request carries
// none.
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := h.Agent.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		h.Log.Error("turn failed", "session", sessionID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to answer the question")
		return
	}

	metrics.RecordTurn(string(result.State), string(result.Code), result.Score, result.Attempts)

	resp := AskResponse{
		SessionID: sessionID,
		Answer:    result.Answer,
		SQL:       result.SQL,
		Truncated: result.Result.Truncated,
		State:     string(result.State),
		Code:      string(result.Code),
		Hint:      agent.Hint(result.Code),
		Score:     result.Score,
		Attempts:  result.Attempts,
		Trace:     result.Trace,
	}
	if result.Result.HasData() {
		resp.Columns = result.Result.Header()
		resp.Rows = result.Result.Rows[1:]
	}
	h.writeJSON(w, http.StatusOK, resp)
}
