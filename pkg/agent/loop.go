package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/screenlake/screenlake/pkg/agent/broaden"
	"github.com/screenlake/screenlake/pkg/warehouse"
)

// TurnState is the terminal state of a convergence loop run.
type TurnState string

const (
	// StateAccepted means the judge scored a result at or above the
	// acceptance threshold.
	StateAccepted TurnState = "accepted"
	// StateExhausted means the loop stopped without an accepted result;
	// the Outcome carries the best result seen and a failure code.
	StateExhausted TurnState = "exhausted"
)

// TraceEntry records one step of the loop for diagnostics.
type TraceEntry struct {
	Attempt  int     `json:"attempt"` // 1-indexed
	Stage    string  `json:"stage"`   // execute, broaden, judge, refine
	Strategy string  `json:"strategy,omitempty"`
	Query    string  `json:"query,omitempty"`
	Outcome  string  `json:"outcome"`
	Score    float64 `json:"score,omitempty"`
}

// Outcome is the result of running the convergence loop for one turn.
type Outcome struct {
	State    TurnState
	Code     FailureCode
	Query    string // query that produced Result
	Result   warehouse.Table
	Score    float64
	Attempts int // warehouse executions consumed
	Trace    []TraceEntry
	Hint     string
}

// ResultJudge scores a question/query/result triple.
type ResultJudge interface {
	Judge(ctx context.Context, question, query string, result warehouse.Table) (Verdict, error)
}

// QueryRefiner rewrites a query from judge feedback.
type QueryRefiner interface {
	Refine(ctx context.Context, question, query, feedback string) (string, error)
}

// BroadenFunc applies one broadening level to a query. Returning the input
// unchanged signals the level does not apply.
type BroadenFunc func(query string, level int) string

// LoopConfig bounds the convergence loop.
type LoopConfig struct {
	InnerAttempts   int     // broadening ceiling per outer pass
	OuterAttempts   int     // refinement ceiling per turn
	AcceptThreshold float64 // minimum accepted relevance score
}

// DefaultLoopConfig returns the standard bounds.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		InnerAttempts:   broaden.MaxLevel,
		OuterAttempts:   3,
		AcceptThreshold: AcceptThreshold,
	}
}

// Loop drives a query through execute/broaden/judge/refine passes until a
// result converges on relevance or the attempt bounds are spent. The total
// number of warehouse executions per turn never exceeds
// InnerAttempts*OuterAttempts, and the judge/refiner together are consulted
// at most OuterAttempts*2 times.
type Loop struct {
	log      *slog.Logger
	executor warehouse.Executor
	judge    ResultJudge
	refiner  QueryRefiner
	broaden  BroadenFunc
	limits   warehouse.Limits
	cfg      LoopConfig
}

// NewLoop creates a Loop.
func NewLoop(log *slog.Logger, executor warehouse.Executor, judge ResultJudge, refiner QueryRefiner, limits warehouse.Limits, cfg LoopConfig) *Loop {
	return &Loop{
		log:      log,
		executor: executor,
		judge:    judge,
		refiner:  refiner,
		broaden:  broaden.Broaden,
		limits:   limits,
		cfg:      cfg,
	}
}

// Run executes the convergence loop for one question/query pair.
func (l *Loop) Run(ctx context.Context, question, query string) (Outcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Outcome{
			State: StateExhausted,
			Code:  CodeEmptyQuery,
			Hint:  Hint(CodeEmptyQuery),
		}, nil
	}

	st := &loopState{
		budget: l.cfg.InnerAttempts * l.cfg.OuterAttempts,
		seen:   map[string]bool{},
	}

	current := query
	for outer := 0; outer < l.cfg.OuterAttempts; outer++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		if st.budget <= 0 {
			break
		}

		result, execErr := l.innerPass(ctx, st, current)
		if execErr != nil {
			code := failureCodeFor(execErr)
			l.log.Warn("query execution failed", "code", code, "error", execErr)
			return l.exhausted(st, code, st.lastQuery, result), nil
		}

		verdict, err := l.judge.Judge(ctx, question, st.lastQuery, result)
		if err != nil {
			return Outcome{}, err
		}
		if verdict.ParseFailed {
			l.log.Warn("judge response unparseable, using default score")
		}
		st.trace(st.attempts, "judge", "", st.lastQuery, "scored", verdict.Score)
		st.observe(st.lastQuery, result, verdict.Score)

		l.log.Debug("judged result", "outer", outer, "score", verdict.Score, "feedback", verdict.Feedback)

		if verdict.Score >= l.cfg.AcceptThreshold {
			return Outcome{
				State:    StateAccepted,
				Query:    st.lastQuery,
				Result:   result,
				Score:    verdict.Score,
				Attempts: st.attempts,
				Trace:    st.entries,
			}, nil
		}

		if outer+1 >= l.cfg.OuterAttempts {
			break
		}

		refined, err := l.refiner.Refine(ctx, question, st.lastQuery, verdict.Feedback)
		if err != nil {
			return Outcome{}, err
		}
		refined = strings.TrimSpace(refined)
		if refined == "" || refined == st.lastQuery || st.seen[refined] {
			st.trace(st.attempts, "refine", "", refined, "no_progress", 0)
			return l.exhausted(st, CodeNoProgress, st.bestQuery, st.bestResult), nil
		}
		st.trace(st.attempts, "refine", "", refined, "rewritten", 0)
		current = refined
	}

	return l.exhausted(st, CodeAttemptsExhausted, st.bestQuery, st.bestResult), nil
}

// innerPass executes the current query, broadening it level by level while
// it comes back empty. It stops early on a hard error, on data, when a
// broadening level no longer changes the query, or when the shared
// execution budget runs out. The caller guarantees at least one execution
// is left in the budget.
func (l *Loop) innerPass(ctx context.Context, st *loopState, query string) (warehouse.Table, error) {
	result, execErr := l.execute(ctx, st, query, "execute", "")
	if execErr != nil || result.HasData() {
		return result, execErr
	}

	for level := broaden.MinLevel; level <= l.cfg.InnerAttempts; level++ {
		rewritten := l.broaden(query, level)
		if rewritten == query {
			break
		}
		if st.seen[rewritten] {
			st.trace(st.attempts, "broaden", broaden.StrategyName(level), rewritten, "skipped_duplicate", 0)
			query = rewritten
			continue
		}
		if st.budget <= 0 {
			break
		}

		query = rewritten
		result, execErr = l.execute(ctx, st, rewritten, "broaden", broaden.StrategyName(level))
		if execErr != nil || result.HasData() {
			break
		}
	}
	return result, execErr
}

// execute runs one warehouse statement against the shared budget.
func (l *Loop) execute(ctx context.Context, st *loopState, query, stage, strategy string) (warehouse.Table, error) {
	st.budget--
	st.attempts++
	st.seen[query] = true
	st.lastQuery = query

	result, err := l.executor.Execute(ctx, query, l.limits)
	outcome := "data"
	switch {
	case err != nil:
		outcome = "error"
	case !result.HasData():
		outcome = "no_data"
	}
	st.trace(st.attempts, stage, strategy, query, outcome, 0)
	l.log.Debug("executed query", "attempt", st.attempts, "stage", stage, "strategy", strategy, "outcome", outcome)
	return result, err
}

func (l *Loop) exhausted(st *loopState, code FailureCode, query string, result warehouse.Table) Outcome {
	return Outcome{
		State:    StateExhausted,
		Code:     code,
		Query:    query,
		Result:   result,
		Score:    st.bestScore,
		Attempts: st.attempts,
		Trace:    st.entries,
		Hint:     Hint(code),
	}
}

type loopState struct {
	budget   int
	attempts int
	seen     map[string]bool

	lastQuery string

	bestQuery  string
	bestResult warehouse.Table
	bestScore  float64

	entries []TraceEntry
}

func (st *loopState) trace(attempt int, stage, strategy, query, outcome string, score float64) {
	st.entries = append(st.entries, TraceEntry{
		Attempt:  attempt,
		Stage:    stage,
		Strategy: strategy,
		Query:    query,
		Outcome:  outcome,
		Score:    score,
	})
}

// observe keeps the highest-scoring judged result as the fallback answer
// when the loop exhausts its attempts.
func (st *loopState) observe(query string, result warehouse.Table, score float64) {
	if st.bestQuery == "" || score > st.bestScore {
		st.bestQuery = query
		st.bestResult = result
		st.bestScore = score
	}
}
