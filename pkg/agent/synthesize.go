package agent

import (
	"context"
	"fmt"
)

const defaultRowLimit = 10

// Synthesizer turns a natural-language question into an initial SQL
// statement, given the warehouse schema description.
type Synthesizer struct {
	llm    LLMClient
	prompt string
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(llm LLMClient, prompt string) *Synthesizer {
	return &Synthesizer{llm: llm, prompt: prompt}
}

// Synthesize generates the initial candidate query. The returned text is
// stripped of fences and prose; "" means the oracle produced nothing usable.
func (s *Synthesizer) Synthesize(ctx context.Context, question, schema string) (string, error) {
	systemPrompt := s.prompt + "\n\n## Database Schema\n\n```\n" + schema + "```"

	response, err := s.llm.Complete(ctx, systemPrompt, "Question: "+question)
	if err != nil {
		return "", fmt.Errorf("LLM completion failed: %w", err)
	}

	sql := extractSQL(response)
	if sql == "" {
		return "", nil
	}
	return ensureLimit(sql, defaultRowLimit), nil
}
