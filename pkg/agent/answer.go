package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/screenlake/screenlake/pkg/warehouse"
)

const answerSampleRows = 20

// Answerer turns a result table into a natural-language answer.
type Answerer struct {
	llm    LLMClient
	prompt string
}

// NewAnswerer creates an Answerer.
func NewAnswerer(llm LLMClient, prompt string) *Answerer {
	return &Answerer{llm: llm, prompt: prompt}
}

// Answer composes the final response from the question and its result.
// Oracle failures degrade to a plain summary of the table rather than
// failing the turn.
func (a *Answerer) Answer(ctx context.Context, question string, result warehouse.Table) (string, error) {
	if result.IsNoData() || result.Empty() {
		return "No data found for your question. Try broadening the date range or relaxing the filters.", nil
	}

	userPrompt := fmt.Sprintf(`USER'S QUESTION: %s

QUERY RESULTS:
%s`, question, formatCompactResult(result))

	response, err := a.llm.Complete(ctx, a.prompt, userPrompt)
	if err != nil || strings.TrimSpace(response) == "" {
		return fallbackSummary(result), nil
	}
	return strings.TrimSpace(response), nil
}

// formatCompactResult renders the table as pipe-separated lines, bounded to
// keep the oracle prompt small on wide results.
func formatCompactResult(result warehouse.Table) string {
	var sb strings.Builder
	for i, row := range result.Rows {
		if i > answerSampleRows {
			sb.WriteString(fmt.Sprintf("... and %d more rows\n", len(result.Rows)-i))
			break
		}
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString("\n")
	}
	if result.Truncated {
		sb.WriteString("(results truncated)\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func fallbackSummary(result warehouse.Table) string {
	n := result.DataRowCount()
	if n == 1 {
		return "The query returned 1 row:\n" + formatCompactResult(result)
	}
	return fmt.Sprintf("The query returned %d rows:\n%s", n, formatCompactResult(result))
}
