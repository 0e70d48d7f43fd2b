package handlers

import (
	"net/http"
	"time"

	"github.com/screenlake/screenlake/pkg/warehouse"
)

// Health reports service liveness and warehouse reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	_, err := h.Executor.Execute(r.Context(), "SELECT 1", warehouse.Limits{
		MaxBytesRead: 1 << 20,
		Timeout:      5 * time.Second,
	})
	if err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  "warehouse unreachable",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
