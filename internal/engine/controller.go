package engine

import (
	"context"

	"github.com/joescharf/tribunal/internal/budget"
	"github.com/joescharf/tribunal/internal/consensus"
	"github.com/joescharf/tribunal/internal/executor"
	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/report"
	"github.com/joescharf/tribunal/internal/roster"
)

// runReview drives the full consensus pipeline:
// KNOWLEDGE -> PHASE1 -> PHASE2 -> CONSENSUS -> INTEGRATE -> DONE.
// Budget admission and the cumulative deadline are checked at phase
// boundaries only; calls already in flight are never abandoned.
func (e *Engine) runReview(ctx context.Context, state *models.RunState, ledger *budget.Ledger, rep *report.Report) {
	cfg := state.Config
	active := e.roster.Active(e.opts.IncludeTertiary)
	required := e.phase1Minimum(len(active))

	e.runKnowledge(ctx, state, rep)
	if e.deadlineExpired(state, rep) {
		return
	}

	// PHASE1: independent reviews plus the skeptic wave. A budget deny
	// here fails the run; nothing usable exists yet.
	if !ledger.Admit(ctx, e.opts.PhaseEstimateCents) {
		rep.SetStatus(models.StatusBudgetExceeded)
		rep.Note = "budget ceiling reached before the review phase launched"
		_ = state.Advance(models.PhaseError)
		return
	}
	_ = state.Advance(models.Phase1)

	jobs := make([]executor.Job, 0, 2*len(active))
	for _, rev := range active {
		jobs = append(jobs, executor.Job{
			ReviewerID: rev.ID,
			Mode:       models.ReviewModeReview,
			ContextRef: state.KnowledgeContext,
		})
	}
	for _, rev := range active {
		jobs = append(jobs, executor.Job{
			ReviewerID: rev.ID,
			Mode:       models.ReviewModeSkeptic,
			ContextRef: state.KnowledgeContext,
		})
	}

	phase1 := e.exec.Execute(ctx, jobs, executor.Options{
		PhaseName:       string(models.Phase1),
		RunID:           state.ID,
		DocumentRef:     cfg.DocPath,
		Stagger:         e.opts.Stagger,
		Timeout:         e.opts.CallTimeout,
		RequiredMinimum: required,
	})
	if err := ledger.RecordOutcome(ctx, phase1); err != nil {
		rep.AddWarning("budget metering: %v", err)
	}
	rep.Reviews = phase1.Results
	warnFailures(rep, phase1)

	reviewOK := 0
	for _, r := range phase1.Results {
		if r.Succeeded && r.Mode == models.ReviewModeReview {
			reviewOK++
		}
	}
	if reviewOK == 0 {
		rep.SetStatus(models.StatusAllCallsFailed)
		rep.Note = "no reviewer produced a usable review"
		_ = state.Advance(models.PhaseDone)
		return
	}
	if reviewOK < required {
		// Below quorum but not empty: the surviving reviews ship, the run
		// degrades, and cross-scoring is skipped.
		rep.Note = "review quorum not met; consensus skipped"
		finalize(state, rep, true)
		return
	}
	degraded := phase1.FailureCount > 0

	if e.deadlineExpired(state, rep) {
		return
	}

	if cfg.SkipConsensus {
		finalize(state, rep, degraded)
		return
	}

	items, warnings := consensus.ParseItems(reviewResults(phase1))
	for _, w := range warnings {
		rep.AddWarning("%s", w)
	}
	if len(items) == 0 {
		rep.AddWarning("no parseable improvement items; cross-scoring skipped")
		finalize(state, rep, true)
		return
	}

	// PHASE2: triangular cross-scoring. A budget deny skips scoring and
	// consensus but keeps the reviews; the run degrades instead of failing.
	if !ledger.Admit(ctx, e.opts.PhaseEstimateCents) {
		rep.Note = "budget ceiling reached; cross-scoring and consensus skipped"
		rep.AddWarning("%s", rep.Note)
		finalize(state, rep, true)
		return
	}
	_ = state.Advance(models.Phase2)

	phase2 := e.exec.Execute(ctx, scoreJobs(active, items), executor.Options{
		PhaseName:       string(models.Phase2),
		RunID:           state.ID,
		DocumentRef:     cfg.DocPath,
		Stagger:         e.opts.Stagger,
		Timeout:         e.opts.CallTimeout,
		RequiredMinimum: 1,
	})
	if err := ledger.RecordOutcome(ctx, phase2); err != nil {
		rep.AddWarning("budget metering: %v", err)
	}
	warnFailures(rep, phase2)
	degraded = degraded || phase2.FailureCount > 0

	if e.deadlineExpired(state, rep) {
		return
	}

	// CONSENSUS: merge items, cross-scores, and skeptic flags into the
	// classified ranking. Aggregation is local and costs nothing, so no
	// admission check here.
	_ = state.Advance(models.PhaseConsensus)

	scores, warnings := consensus.ParseScores(phase2.Successes())
	for _, w := range warnings {
		rep.AddWarning("%s", w)
	}
	flags, warnings := consensus.ParseSkepticFlags(skepticResults(phase1))
	for _, w := range warnings {
		rep.AddWarning("%s", w)
	}

	sum, err := consensus.New(e.scoring, e.opts.Threshold).Aggregate(ctx, consensus.Input{
		Items:        items,
		CrossScores:  scores,
		SkepticFlags: flags,
	})
	if err != nil {
		rep.AddWarning("consensus aggregation failed: %v", err)
		finalize(state, rep, true)
		return
	}

	// INTEGRATE: fold the classified summary into the envelope.
	_ = state.Advance(models.PhaseIntegrate)
	rep.Consensus = sum

	finalize(state, rep, degraded)
}

// scoreJobs builds one job per ordered reviewer pair: every scorer rates
// every other reviewer's items. Pairs where the author produced nothing are
// skipped.
func scoreJobs(active []roster.Reviewer, items []models.ImprovementItem) []executor.Job {
	byAuthor := make(map[string][]models.ImprovementItem)
	for _, it := range items {
		byAuthor[it.Reviewer] = append(byAuthor[it.Reviewer], it)
	}

	var jobs []executor.Job
	for _, scorer := range active {
		for _, author := range active {
			if scorer.ID == author.ID {
				continue
			}
			authored := byAuthor[author.ID]
			if len(authored) == 0 {
				continue
			}
			jobs = append(jobs, executor.Job{
				ReviewerID: scorer.ID,
				Mode:       models.ReviewModeScore,
				ContextRef: consensus.ItemsJSON(authored),
			})
		}
	}
	return jobs
}

func reviewResults(o *models.PhaseOutcome) []models.ReviewResult {
	return resultsByMode(o, models.ReviewModeReview)
}

func skepticResults(o *models.PhaseOutcome) []models.ReviewResult {
	return resultsByMode(o, models.ReviewModeSkeptic)
}

func resultsByMode(o *models.PhaseOutcome, mode models.ReviewMode) []models.ReviewResult {
	var out []models.ReviewResult
	for _, r := range o.Results {
		if r.Mode == mode {
			out = append(out, r)
		}
	}
	return out
}

// warnFailures surfaces each failed call as a report warning.
func warnFailures(rep *report.Report, o *models.PhaseOutcome) {
	for _, r := range o.Results {
		if !r.Succeeded {
			rep.AddWarning("%s: reviewer %s (%s) failed: %s", o.PhaseName, r.ReviewerID, r.Mode, r.ErrorKind)
		}
	}
}
