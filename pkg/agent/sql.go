package agent

import (
	"strconv"
	"strings"
)

// extractSQL pulls a SQL statement out of an LLM response, stripping markdown
// fences and surrounding prose. Returns "" when nothing SQL-shaped is found.
func extractSQL(response string) string {
	response = strings.TrimSpace(response)

	if sql := extractFromCodeBlocks(response); sql != "" {
		return sql
	}
	if looksLikeSQL(response) {
		return cleanSQL(response)
	}
	return ""
}

// extractFromCodeBlocks finds SQL in markdown code blocks.
func extractFromCodeBlocks(response string) string {
	if start := strings.Index(response, "```sql"); start != -1 {
		start += 6 // len("```sql")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return cleanSQL(response[start : start+end])
		}
	}

	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			content := strings.TrimSpace(response[start : start+end])
			if looksLikeSQL(content) {
				return cleanSQL(content)
			}
		}
	}

	return ""
}

// looksLikeSQL checks if text appears to be a SQL statement.
func looksLikeSQL(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	for _, kw := range []string{"SELECT", "WITH"} {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

// cleanSQL normalizes SQL by trimming whitespace and trailing semicolons.
func cleanSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return sql
}

// ensureLimit appends a row limit when the statement has none, so a vague
// question cannot pull an entire fact table through the executor.
func ensureLimit(sql string, limit int) string {
	if strings.Contains(strings.ToUpper(sql), "LIMIT") {
		return sql
	}
	if limit <= 0 {
		limit = 10
	}
	return sql + " LIMIT " + strconv.Itoa(limit)
}
