package warehouse

import (
	"errors"
	"strings"
)

// FailureKind classifies a warehouse execution failure. Classification is by
// inspecting the error text the warehouse returns, never by exception type:
// ClickHouse reports every failure as an HTTP error body.
type FailureKind string

const (
	// KindBudgetExceeded means the byte-processing ceiling was hit.
	KindBudgetExceeded FailureKind = "budget_exceeded"
	// KindTimeout means the statement exceeded its wall-clock allotment.
	KindTimeout FailureKind = "timeout"
	// KindSchemaReference means the statement referenced an unknown table,
	// column, or database.
	KindSchemaReference FailureKind = "schema_reference"
	// KindOther covers everything else.
	KindOther FailureKind = "other"
)

// QueryError is a classified warehouse execution failure.
type QueryError struct {
	Kind    FailureKind
	Message string
}

func (e *QueryError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// KindOf extracts the FailureKind from an error chain, or KindOther when
// the error is not a QueryError.
func KindOf(err error) FailureKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindOther
}

// classifyError maps a warehouse error message onto a FailureKind.
func classifyError(message string) FailureKind {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "bytes to read") ||
		strings.Contains(m, "too_many_rows_or_bytes") ||
		strings.Contains(m, "bytes billed"):
		return KindBudgetExceeded
	case strings.Contains(m, "timeout") ||
		strings.Contains(m, "timed out") ||
		strings.Contains(m, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(m, "unknown table") ||
		strings.Contains(m, "unknown_table") ||
		strings.Contains(m, "unknown identifier") ||
		strings.Contains(m, "unknown_identifier") ||
		strings.Contains(m, "unknown database") ||
		strings.Contains(m, "missing columns") ||
		strings.Contains(m, "doesn't exist") ||
		strings.Contains(m, "not found"):
		return KindSchemaReference
	default:
		return KindOther
	}
}
