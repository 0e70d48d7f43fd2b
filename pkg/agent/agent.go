// Package agent answers natural-language analytics questions by synthesizing
// SQL, executing it against the warehouse under hard limits, and iteratively
// broadening and refining the query until the result converges on relevance.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/screenlake/screenlake/pkg/agent/prompts"
	"github.com/screenlake/screenlake/pkg/session"
	"github.com/screenlake/screenlake/pkg/warehouse"
)

// SchemaSource supplies the formatted warehouse schema description.
type SchemaSource interface {
	FetchSchema(ctx context.Context) (string, error)
}

// TurnResult is the full outcome of one question.
type TurnResult struct {
	Answer   string
	Intent   Intent
	SQL      string
	Result   warehouse.Table
	State    TurnState
	Code     FailureCode
	Score    float64
	Attempts int
	Trace    []TraceEntry
}

// Agent orchestrates one turn: classify, synthesize, run the convergence
// loop, compose the answer, and record the turn in session history.
type Agent struct {
	log         *slog.Logger
	classifier  *Classifier
	synthesizer *Synthesizer
	answerer    *Answerer
	schema      SchemaSource
	loop        *Loop
	store       session.Store
}

// New wires an Agent from its capabilities.
func New(log *slog.Logger, llm LLMClient, executor warehouse.Executor, schema SchemaSource, store session.Store, limits warehouse.Limits, cfg LoopConfig) (*Agent, error) {
	p, err := prompts.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	loop := NewLoop(log, executor, NewJudge(llm, p.Judge), NewRefiner(llm, p.Refine), limits, cfg)

	return &Agent{
		log:         log,
		classifier:  NewClassifier(llm, p.Classify),
		synthesizer: NewSynthesizer(llm, p.Generate),
		answerer:    NewAnswerer(llm, p.Answer),
		schema:      schema,
		loop:        loop,
		store:       store,
	}, nil
}

// Ask answers one question for a session.
func (a *Agent) Ask(ctx context.Context, sessionID, question string) (TurnResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return TurnResult{}, fmt.Errorf("question is empty")
	}

	intent, err := a.classifier.Classify(ctx, question)
	if err != nil {
		return TurnResult{}, fmt.Errorf("classification failed: %w", err)
	}
	if canned := CannedAnswer(intent); canned != "" {
		result := TurnResult{Answer: canned, Intent: intent, State: StateAccepted}
		a.record(ctx, sessionID, question, canned)
		return result, nil
	}

	schema, err := a.schema.FetchSchema(ctx)
	if err != nil {
		return TurnResult{}, fmt.Errorf("schema fetch failed: %w", err)
	}

	contextual, err := a.contextualize(ctx, sessionID, question)
	if err != nil {
		return TurnResult{}, err
	}

	query, err := a.synthesizer.Synthesize(ctx, contextual, schema)
	if err != nil {
		return TurnResult{}, fmt.Errorf("query synthesis failed: %w", err)
	}

	outcome, err := a.loop.Run(ctx, question, query)
	if err != nil {
		return TurnResult{}, err
	}

	a.log.Info("turn completed",
		"session", sessionID,
		"state", outcome.State,
		"code", outcome.Code,
		"score", outcome.Score,
		"attempts", outcome.Attempts)

	answer := a.composeAnswer(ctx, question, outcome)
	a.record(ctx, sessionID, question, answer)

	return TurnResult{
		Answer:   answer,
		Intent:   intent,
		SQL:      outcome.Query,
		Result:   outcome.Result,
		State:    outcome.State,
		Code:     outcome.Code,
		Score:    outcome.Score,
		Attempts: outcome.Attempts,
		Trace:    outcome.Trace,
	}, nil
}

// composeAnswer renders the outcome as a user-facing answer. Exhausted turns
// still answer from the best result seen, with the remediation hint attached.
func (a *Agent) composeAnswer(ctx context.Context, question string, outcome Outcome) string {
	answer, _ := a.answerer.Answer(ctx, question, outcome.Result)
	if outcome.State == StateAccepted || outcome.Hint == "" {
		return answer
	}
	if outcome.Result.HasData() {
		return answer + "\n\n" + outcome.Hint
	}
	return outcome.Hint
}

// contextualize prepends recent session history so follow-up questions
// resolve references like "what about last month".
func (a *Agent) contextualize(ctx context.Context, sessionID, question string) (string, error) {
	history, err := a.store.History(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("history fetch failed: %w", err)
	}
	if len(history) == 0 {
		return question, nil
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, entry := range history {
		sb.WriteString("Q: " + entry.Question + "\n")
		sb.WriteString("A: " + entry.Answer + "\n")
	}
	sb.WriteString("\nCurrent question: " + question)
	return sb.String(), nil
}

// record appends the turn to session history. History is best-effort: a
// storage failure is logged, never surfaced to the user.
func (a *Agent) record(ctx context.Context, sessionID, question, answer string) {
	if sessionID == "" {
		return
	}
	err := a.store.Append(ctx, sessionID, session.Entry{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		a.log.Warn("failed to record session history", "session", sessionID, "error", err)
	}
}
