package engine

import (
	"context"
	"time"

	"github.com/joescharf/tribunal/internal/budget"
	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/report"
)

// runRedTeam delegates the whole analysis to the adversarial pipeline. The
// engine's only decisions are admission, depth selection from the remaining
// budget, and merging the returned report into its own envelope.
func (e *Engine) runRedTeam(ctx context.Context, state *models.RunState, ledger *budget.Ledger, rep *report.Report, doc string) {
	e.runKnowledge(ctx, state, rep)
	if e.deadlineExpired(state, rep) {
		return
	}

	if !ledger.Admit(ctx, e.opts.PhaseEstimateCents) {
		rep.SetStatus(models.StatusBudgetExceeded)
		rep.Note = "budget ceiling reached before the adversarial pass launched"
		_ = state.Advance(models.PhaseError)
		return
	}
	_ = state.Advance(models.PhaseRedTeam)

	remaining := 0
	if c := ledger.CeilingCents(); c > 0 {
		remaining = c - ledger.TotalCents()
	}
	depth := depthForBudget(remaining)
	rep.Execution.Reason = routingReason(models.ModeRedTeam) + " at depth " + depth

	rctx := ctx
	if state.Config.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithDeadline(ctx, state.Deadline())
		defer cancel()
	}

	start := e.now()
	res, err := e.redteam.Run(rctx, RedTeamRequest{
		Document: doc,
		Phase:    state.Config.DocPhase,
		Depth:    depth,
		Context:  state.KnowledgeContext,
	})
	latency := e.now().Sub(start)

	if err != nil {
		rep.AddWarning("adversarial pipeline: %v", err)
		rep.SetStatus(models.StatusAllCallsFailed)
		rep.Note = "adversarial pipeline produced no report"
		_ = state.Advance(models.PhaseDone)
		return
	}

	// The pipeline meters its own spend; fold it into this run's ledger as
	// a single entry.
	if err := ledger.Record(ctx, models.ReviewResult{
		ReviewerID: "red-team",
		Mode:       models.ReviewModeReview,
		TokensIn:   res.Tokens,
		CostCents:  res.CostCents,
		Latency:    latency.Truncate(time.Millisecond),
		Succeeded:  true,
	}); err != nil {
		rep.AddWarning("budget metering: %v", err)
	}

	rep.RedTeam = res.Report
	if e.deadlineExpired(state, rep) {
		return
	}
	finalize(state, rep, false)
}
