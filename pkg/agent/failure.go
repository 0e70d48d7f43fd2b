package agent

import "github.com/screenlake/screenlake/pkg/warehouse"

// FailureCode names the terminal reason a turn stopped short of an
// accepted result.
type FailureCode string

const (
	CodeNone              FailureCode = ""
	CodeEmptyQuery        FailureCode = "empty_query"
	CodeBudgetExceeded    FailureCode = "budget_exceeded"
	CodeTimeout           FailureCode = "timeout"
	CodeSchemaReference   FailureCode = "schema_reference"
	CodeOther             FailureCode = "query_failed"
	CodeNoProgress        FailureCode = "no_progress"
	CodeAttemptsExhausted FailureCode = "attempts_exhausted"
)

// remediationHints map each failure to a user-facing suggestion, surfaced
// alongside the best answer the loop could produce.
var remediationHints = map[FailureCode]string{
	CodeEmptyQuery:        "I couldn't turn that question into a query. Try rephrasing it with the specific metric or entity you're interested in.",
	CodeBudgetExceeded:    "The query scanned too much data. Try narrowing the date range or adding filters to reduce the amount of data processed.",
	CodeTimeout:           "The query took too long to run. Try simplifying the question or narrowing its scope.",
	CodeSchemaReference:   "The query referenced a table or column that doesn't exist. Try rephrasing the question using different terms.",
	CodeOther:             "The query failed to execute. Try rephrasing the question or asking something simpler.",
	CodeNoProgress:        "Refinement stopped making progress. Try rephrasing the question or asking something more specific.",
	CodeAttemptsExhausted: "I couldn't find a fully satisfying answer within the attempt limit. The closest result is shown; consider rephrasing for a better match.",
}

// Hint returns the remediation suggestion for a failure code, or "".
func Hint(code FailureCode) string {
	return remediationHints[code]
}

// failureCodeFor maps a classified warehouse error onto the turn-level
// failure taxonomy.
func failureCodeFor(err error) FailureCode {
	switch warehouse.KindOf(err) {
	case warehouse.KindBudgetExceeded:
		return CodeBudgetExceeded
	case warehouse.KindTimeout:
		return CodeTimeout
	case warehouse.KindSchemaReference:
		return CodeSchemaReference
	default:
		return CodeOther
	}
}
