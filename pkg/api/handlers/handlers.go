// Package handlers implements the HTTP endpoints of the API service.
// Dependencies are injected through the Handlers struct so tests can
// substitute fakes for the agent, the warehouse, and the session store.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/screenlake/screenlake/pkg/agent"
	"github.com/screenlake/screenlake/pkg/session"
	"github.com/screenlake/screenlake/pkg/warehouse"
)

// Asker runs one agent turn.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string) (agent.TurnResult, error)
}

// Handlers carries the dependencies shared by all endpoints.
type Handlers struct {
	Log      *slog.Logger
	Agent    Asker
	Executor warehouse.Executor
	Store    session.Store
	Limits   warehouse.Limits
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
