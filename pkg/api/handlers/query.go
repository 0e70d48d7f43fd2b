package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/screenlake/screenlake/pkg/api/metrics"
	"github.com/screenlake/screenlake/pkg/warehouse"
)

// QueryRequest is a raw SQL statement to execute under the standard limits.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the normalized result of a direct query.
type QueryResponse struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	RowCount  int        `json:"row_count"`
	Truncated bool       `json:"truncated,omitempty"`
	NoData    bool       `json:"no_data,omitempty"`
	ElapsedMs int64      `json:"elapsed_ms"`
	Error     string     `json:"error,omitempty"`
}

// Query executes one SQL statement directly. The same byte and timeout
// limits apply as for agent-issued queries.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	start := time.Now()
	table, err := h.Executor.Execute(r.Context(), req.Query, h.Limits)
	elapsed := time.Since(start)

	if err != nil {
		var qe *warehouse.QueryError
		kind := string(warehouse.KindOther)
		message := err.Error()
		if errors.As(err, &qe) {
			kind = string(qe.Kind)
			message = qe.Message
		}
		metrics.RecordWarehouseQuery(elapsed, kind)
		h.writeJSON(w, http.StatusOK, QueryResponse{
			ElapsedMs: elapsed.Milliseconds(),
			Error:     message,
		})
		return
	}
	metrics.RecordWarehouseQuery(elapsed, "")

	resp := QueryResponse{
		ElapsedMs: elapsed.Milliseconds(),
		Truncated: table.Truncated,
	}
	if table.IsNoData() {
		resp.NoData = true
	} else if table.HasData() {
		resp.Columns = table.Header()
		resp.Rows = table.Rows[1:]
		resp.RowCount = table.DataRowCount()
	}
	h.writeJSON(w, http.StatusOK, resp)
}
