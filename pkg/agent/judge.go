package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/screenlake/screenlake/pkg/warehouse"
)

// Verdict is the judge's assessment of a question/query/result triple.
type Verdict struct {
	Score    float64 // clamped to [1,10]
	Feedback string
	// ParseFailed marks a verdict built from defensive defaults because the
	// oracle response could not be parsed.
	ParseFailed bool
}

const (
	// AcceptThreshold is the fixed score at or above which a result is
	// accepted without further refinement.
	AcceptThreshold = 7.0

	defaultScore    = 5.0
	judgeSampleRows = 3
)

// Judge scores how well a result answers the original question.
type Judge struct {
	llm    LLMClient
	prompt string
}

// NewJudge creates a Judge.
func NewJudge(llm LLMClient, prompt string) *Judge {
	return &Judge{llm: llm, prompt: prompt}
}

// Judge scores the triple. Oracle transport errors are returned to the
// caller; a response that merely fails to parse yields the neutral default
// verdict so a malformed oracle reply never fails the turn.
func (j *Judge) Judge(ctx context.Context, question, query string, result warehouse.Table) (Verdict, error) {
	userPrompt := fmt.Sprintf(`USER'S QUESTION: %s

SQL QUERY USED: %s

RESULTS SAMPLE:
%s`, question, query, formatResultSample(result))

	response, err := j.llm.Complete(ctx, j.prompt, userPrompt)
	if err != nil {
		return Verdict{}, fmt.Errorf("LLM completion failed: %w", err)
	}

	return parseVerdict(response), nil
}

// parseVerdict extracts SCORE and FEEDBACK lines from the oracle response,
// defaulting to a neutral score when either is missing or malformed.
func parseVerdict(response string) Verdict {
	v := Verdict{Score: defaultScore, ParseFailed: true}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "SCORE:"); ok {
			if score, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
				v.Score = clampScore(score)
				v.ParseFailed = false
			}
		} else if rest, ok := strings.CutPrefix(line, "FEEDBACK:"); ok {
			v.Feedback = strings.TrimSpace(rest)
		}
	}

	return v
}

func clampScore(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// formatResultSample renders a bounded sample for the oracle: the header,
// up to three data rows, and a count of what was omitted.
func formatResultSample(result warehouse.Table) string {
	if result.Empty() || result.IsNoData() {
		return "No data found"
	}
	if result.IsError() {
		msg := ""
		if len(result.Rows) > 1 && len(result.Rows[1]) > 0 {
			msg = result.Rows[1][0]
		}
		return "Query failed: " + msg
	}

	var sb strings.Builder
	sb.WriteString("Headers: " + strings.Join(result.Rows[0], " | ") + "\n")

	shown := 0
	for i, row := range result.Rows[1:] {
		if i >= judgeSampleRows {
			break
		}
		sb.WriteString(fmt.Sprintf("Row %d: %s\n", i+1, strings.Join(row, " | ")))
		shown++
	}

	if omitted := result.DataRowCount() - shown; omitted > 0 {
		sb.WriteString(fmt.Sprintf("... and %d more rows", omitted))
	}
	return strings.TrimRight(sb.String(), "\n")
}
