package agent

import (
	"context"
	"fmt"
)

// Refiner rewrites a query using the judge's feedback.
type Refiner struct {
	llm    LLMClient
	prompt string
}

// NewRefiner creates a Refiner.
func NewRefiner(llm LLMClient, prompt string) *Refiner {
	return &Refiner{llm: llm, prompt: prompt}
}

// Refine produces an improved query from the feedback. An empty return
// means the oracle produced nothing usable; the caller treats that, and a
// query identical to the current one, as lack of progress.
func (r *Refiner) Refine(ctx context.Context, question, query, feedback string) (string, error) {
	userPrompt := fmt.Sprintf(`USER'S QUESTION: %s

CURRENT SQL QUERY: %s

FEEDBACK ON WHY RESULTS ARE INADEQUATE: %s`, question, query, feedback)

	response, err := r.llm.Complete(ctx, r.prompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("LLM completion failed: %w", err)
	}

	return extractSQL(response), nil
}
