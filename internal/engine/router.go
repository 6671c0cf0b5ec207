package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/report"
)

// Run executes one run end to end and always returns a report; failures are
// encoded in its status, never lost. Validation happens before any budget is
// spent.
func (e *Engine) Run(ctx context.Context, cfg models.RunConfig) *report.Report {
	rep := &report.Report{
		Phase:    cfg.DocPhase,
		Document: cfg.DocPath,
		Domain:   cfg.Domain,
	}
	rep.SetStatus(models.StatusOK)

	if err := e.validate(cfg); err != nil {
		rep.SetStatus(models.StatusConfigError)
		rep.Note = err.Error()
		return rep
	}

	doc, err := os.ReadFile(cfg.DocPath)
	if err != nil {
		rep.SetStatus(models.StatusConfigError)
		rep.Note = fmt.Sprintf("read document: %v", err)
		return rep
	}

	state := &models.RunState{
		ID:        newRunID(),
		Phase:     models.PhaseInit,
		StartedAt: e.now(),
		Config:    cfg,
	}
	rep.Execution = report.Execution{
		Mode:   cfg.Mode,
		Reason: routingReason(cfg.Mode),
		RunID:  state.ID,
	}

	ledger := e.newLedger(state.ID, cfg.BudgetCents)

	switch cfg.Mode {
	case models.ModeRedTeam:
		e.runRedTeam(ctx, state, ledger, rep, string(doc))
	case models.ModeInquiry:
		e.runInquiry(ctx, state, ledger, rep)
	default:
		e.runReview(ctx, state, ledger, rep)
	}

	rep.SetMetrics(e.now().Sub(state.StartedAt).Milliseconds(), ledger.TotalCents(), ledger.TotalTokens())
	return rep
}

// validate rejects bad configuration before the run acquires an id or spends
// anything.
func (e *Engine) validate(cfg models.RunConfig) error {
	if _, err := models.ParseMode(string(cfg.Mode)); err != nil {
		return err
	}
	if _, err := models.ParseDocPhase(string(cfg.DocPhase)); err != nil {
		return err
	}
	if cfg.DocPath == "" {
		return fmt.Errorf("%w: no document given", models.ErrConfiguration)
	}
	if err := e.roster.Validate(); err != nil {
		return err
	}
	if len(e.roster.Active(e.opts.IncludeTertiary)) == 0 {
		return fmt.Errorf("%w: no active reviewers", models.ErrConfiguration)
	}
	if cfg.Mode == models.ModeRedTeam && e.redteam == nil {
		return fmt.Errorf("%w: red-team mode requires an adversarial pipeline", models.ErrConfiguration)
	}
	return nil
}

func routingReason(m models.Mode) string {
	switch m {
	case models.ModeRedTeam:
		return "red-team mode delegates to the adversarial pipeline"
	case models.ModeInquiry:
		return "inquiry mode runs three perspective passes without consensus"
	default:
		return "review mode runs the full consensus pipeline"
	}
}

// runKnowledge performs the optional KNOWLEDGE phase. Failure is recorded on
// the state and reported as a warning; it never aborts the run.
func (e *Engine) runKnowledge(ctx context.Context, state *models.RunState, rep *report.Report) {
	if state.Config.SkipKnowledge || e.know == nil {
		return
	}
	_ = state.Advance(models.PhaseKnowledge)
	kctx, err := e.know.Retrieve(ctx, state.Config.DocPath, state.Config.DocPhase)
	if err != nil {
		state.KnowledgeFailed = true
		rep.AddWarning("knowledge retrieval failed: %v", err)
		return
	}
	state.KnowledgeContext = kctx
}

// deadlineExpired checks the cumulative deadline at a phase boundary and, if
// passed, terminates the run with whatever partial results the report holds.
func (e *Engine) deadlineExpired(state *models.RunState, rep *report.Report) bool {
	if !state.DeadlineExceeded(e.now()) {
		return false
	}
	rep.SetStatus(models.StatusDeadline)
	rep.Note = fmt.Sprintf("deadline of %s exceeded at phase %s", state.Config.Timeout, state.Phase)
	_ = state.Advance(models.PhaseError)
	return true
}

// finalize resolves the terminal status for a run that reached DONE.
// Degradation outranks a knowledge failure; both outrank ok.
func finalize(state *models.RunState, rep *report.Report, degraded bool) {
	_ = state.Advance(models.PhaseDone)
	switch {
	case degraded:
		rep.SetStatus(models.StatusDegraded)
		rep.Degraded = true
	case state.KnowledgeFailed:
		rep.SetStatus(models.StatusKnowledgeFailed)
	default:
		rep.SetStatus(models.StatusOK)
	}
}
