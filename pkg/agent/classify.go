package agent

import (
	"context"
	"strings"
)

// Intent is the classification of a user question.
type Intent string

const (
	IntentGreeting   Intent = "greeting"
	IntentQuery      Intent = "query"
	IntentOutOfScope Intent = "out_of_scope"
)

// Canned responses for the non-query intents.
const (
	greetingAnswer = "Hello! I can help you analyze movie and entertainment data. " +
		"What would you like to know about content, cinemas, or streaming metrics?"
	outOfScopeAnswer = "I specialize in movie and entertainment analytics. " +
		"Please ask about content, cinemas, showtimes, streaming platforms, or viewing metrics."
)

// Classifier decides whether a question is answerable from the warehouse.
type Classifier struct {
	llm    LLMClient
	prompt string
}

// NewClassifier creates a Classifier.
func NewClassifier(llm LLMClient, prompt string) *Classifier {
	return &Classifier{llm: llm, prompt: prompt}
}

// Classify returns the intent of a question. Unparseable oracle output
// defaults to IntentQuery so a flaky classification never blocks a real
// question.
func (c *Classifier) Classify(ctx context.Context, question string) (Intent, error) {
	response, err := c.llm.Complete(ctx, c.prompt, "Question: "+question)
	if err != nil {
		return "", err
	}

	switch Intent(strings.ToLower(strings.TrimSpace(response))) {
	case IntentGreeting:
		return IntentGreeting, nil
	case IntentOutOfScope:
		return IntentOutOfScope, nil
	default:
		return IntentQuery, nil
	}
}

// CannedAnswer returns the fixed response for a non-query intent, or "" when
// the intent requires the full pipeline.
func CannedAnswer(intent Intent) string {
	switch intent {
	case IntentGreeting:
		return greetingAnswer
	case IntentOutOfScope:
		return outOfScopeAnswer
	default:
		return ""
	}
}
