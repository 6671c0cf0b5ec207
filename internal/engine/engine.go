// Package engine owns run orchestration: mode routing, the forward-only
// phase state machine, budget admission at phase boundaries, and assembly of
// the final report envelope.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/tribunal/internal/budget"
	"github.com/joescharf/tribunal/internal/consensus"
	"github.com/joescharf/tribunal/internal/executor"
	"github.com/joescharf/tribunal/internal/knowledge"
	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/roster"
	"github.com/joescharf/tribunal/internal/store"
)

// RedTeamRequest is the envelope handed to the adversarial pipeline.
type RedTeamRequest struct {
	Document string
	Phase    models.DocPhase
	// Depth is derived from the remaining budget, never configured directly.
	Depth   string
	Context string
}

// RedTeamResult is the pipeline's report plus its metered spend.
type RedTeamResult struct {
	Report    json.RawMessage
	CostCents int
	Tokens    int
}

// RedTeamPipeline is the external adversarial-analysis collaborator. The
// engine translates budget into depth, delegates, and merges the returned
// report into its own envelope.
type RedTeamPipeline interface {
	Run(ctx context.Context, req RedTeamRequest) (*RedTeamResult, error)
}

// Options tunes engine behavior shared across runs.
type Options struct {
	// Stagger between same-phase mode waves at launch time.
	Stagger time.Duration
	// CallTimeout bounds each individual reviewer call.
	CallTimeout time.Duration
	// Threshold is the cross-score acceptance threshold (0 = default).
	Threshold int
	// Phase1Minimum successes required for the review phase to be usable.
	// Zero derives the default from roster size: 1 for the two-reviewer
	// roster, 2 once the tertiary joins.
	Phase1Minimum int
	// IncludeTertiary enables the triangular roster.
	IncludeTertiary bool
	// PhaseEstimateCents is the admission estimate charged against the
	// ceiling before each paid phase launches.
	PhaseEstimateCents int
	// DailyCeilingCents caps spend across runs when a store is attached.
	DailyCeilingCents int
}

// Engine wires the collaborators for a run. The invoker is already bound to
// the run's document, so an engine serves one run.
type Engine struct {
	roster  *roster.Roster
	exec    *executor.Executor
	opts    Options
	store   store.Store
	know    knowledge.Retriever
	scoring consensus.ScoringBackend
	redteam RedTeamPipeline

	now func() time.Time
}

// New creates an engine over a roster and an invoker.
func New(r *roster.Roster, inv executor.Invoker, opts Options) *Engine {
	return &Engine{
		roster: r,
		exec:   executor.New(inv),
		opts:   opts,
		now:    time.Now,
	}
}

// WithStore attaches persistent budget metering.
func (e *Engine) WithStore(s store.Store) *Engine {
	e.store = s
	return e
}

// WithKnowledge attaches the knowledge-retrieval collaborator.
func (e *Engine) WithKnowledge(k knowledge.Retriever) *Engine {
	e.know = k
	return e
}

// WithScoring overrides the consensus scoring backend.
func (e *Engine) WithScoring(s consensus.ScoringBackend) *Engine {
	e.scoring = s
	return e
}

// WithRedTeam attaches the adversarial pipeline for red-team runs.
func (e *Engine) WithRedTeam(p RedTeamPipeline) *Engine {
	e.redteam = p
	return e
}

// newLedger builds the per-run budget ledger.
func (e *Engine) newLedger(runID string, ceilingCents int) *budget.Ledger {
	l := budget.NewLedger(runID, ceilingCents)
	if e.store != nil {
		l = l.WithStore(e.store, e.opts.DailyCeilingCents)
	}
	return l
}

// phase1Minimum resolves the review-phase quorum floor.
func (e *Engine) phase1Minimum(active int) int {
	if e.opts.Phase1Minimum > 0 {
		return e.opts.Phase1Minimum
	}
	if active >= 3 {
		return 2
	}
	return 1
}

func newRunID() string {
	return ulid.Make().String()
}

// depthForBudget maps remaining budget onto adversarial depth. Zero means
// unlimited and gets the deep pass.
func depthForBudget(remainingCents int) string {
	switch {
	case remainingCents == 0:
		return "deep"
	case remainingCents < 500:
		return "shallow"
	case remainingCents < 2000:
		return "standard"
	default:
		return "deep"
	}
}
