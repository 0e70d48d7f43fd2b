package warehouse

import "fmt"

// NoDataMessage is the single cell of the sentinel table returned when a
// query succeeds but matches no rows.
const NoDataMessage = "No data found"

// ErrorMarker is the first-row marker of an error table.
const ErrorMarker = "Error"

// MaxDataRows caps the number of data rows carried in a Table. Rows beyond
// the cap are dropped and the Truncated flag is set.
const MaxDataRows = 1000

// Table is a rectangular query result. Row 0 is the column-name header and
// subsequent rows are stringified cell values. Two reserved shapes exist: the
// "no data found" sentinel (single row, single cell) and the error table
// (an "Error" marker row followed by the message row).
type Table struct {
	Rows      [][]string
	Truncated bool
}

// NoDataTable returns the sentinel table for a query that matched no rows.
func NoDataTable() Table {
	return Table{Rows: [][]string{{NoDataMessage}}}
}

// ErrorTable returns the reserved error table for a failed execution.
func ErrorTable(message string) Table {
	return Table{Rows: [][]string{{ErrorMarker}, {message}}}
}

// IsNoData reports whether t is the "no data found" sentinel.
func (t Table) IsNoData() bool {
	return len(t.Rows) == 1 && len(t.Rows[0]) == 1 && t.Rows[0][0] == NoDataMessage
}

// IsError reports whether t is an error table.
func (t Table) IsError() bool {
	return len(t.Rows) >= 1 && len(t.Rows[0]) == 1 && t.Rows[0][0] == ErrorMarker
}

// Empty reports whether t carries no rows at all. A well-formed result is
// never Empty; executions that match nothing produce the sentinel instead.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// HasData reports whether t carries meaningful data rows, i.e. it is neither
// empty, the sentinel, nor an error table.
func (t Table) HasData() bool {
	return !t.Empty() && !t.IsNoData() && !t.IsError()
}

// Header returns the column-name row, or nil for reserved shapes.
func (t Table) Header() []string {
	if !t.HasData() {
		return nil
	}
	return t.Rows[0]
}

// DataRowCount returns the number of data rows (excluding the header).
func (t Table) DataRowCount() int {
	if !t.HasData() {
		return 0
	}
	return len(t.Rows) - 1
}

// formatCell stringifies a single cell value. Floats with no fractional part
// are printed as integers so counts do not come back as "42.000000".
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%v", val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}
