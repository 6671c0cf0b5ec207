package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/joescharf/tribunal/internal/budget"
	"github.com/joescharf/tribunal/internal/executor"
	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/normalize"
	"github.com/joescharf/tribunal/internal/report"
)

// inquiryPerspectives are the three fixed angles of an inquiry run, in
// launch order.
var inquiryPerspectives = []string{"structural", "historical", "governance"}

// inquiryMinimum is the fixed two-of-three quorum for inquiry runs.
const inquiryMinimum = 2

// runInquiry drives the three-perspective pipeline. There is no scoring and
// no consensus; each perspective reports independently. A perspective whose
// response cannot be normalized is passed through raw, never filled in.
func (e *Engine) runInquiry(ctx context.Context, state *models.RunState, ledger *budget.Ledger, rep *report.Report) {
	e.runKnowledge(ctx, state, rep)
	if e.deadlineExpired(state, rep) {
		return
	}

	if !ledger.Admit(ctx, e.opts.PhaseEstimateCents) {
		rep.SetStatus(models.StatusBudgetExceeded)
		rep.Note = "budget ceiling reached before the inquiry launched"
		_ = state.Advance(models.PhaseError)
		return
	}
	_ = state.Advance(models.PhaseInquiry)

	active := e.roster.Active(e.opts.IncludeTertiary)
	jobs := make([]executor.Job, len(inquiryPerspectives))
	for i, p := range inquiryPerspectives {
		jobs[i] = executor.Job{
			ReviewerID:  active[i%len(active)].ID,
			Mode:        models.ReviewModeReview,
			Perspective: p,
		}
	}

	outcome := e.exec.Execute(ctx, jobs, executor.Options{
		PhaseName:       string(models.PhaseInquiry),
		RunID:           state.ID,
		DocumentRef:     state.Config.DocPath,
		Timeout:         e.opts.CallTimeout,
		RequiredMinimum: inquiryMinimum,
	})
	if err := ledger.RecordOutcome(ctx, outcome); err != nil {
		rep.AddWarning("budget metering: %v", err)
	}
	warnFailures(rep, outcome)

	if outcome.SuccessCount == 0 {
		rep.SetStatus(models.StatusAllCallsFailed)
		rep.Note = "no perspective answered"
		_ = state.Advance(models.PhaseDone)
		return
	}

	rep.Inquiry = perspectiveFindings(outcome.Results)
	if !outcome.QuorumMet {
		// A single surviving perspective still ships; the run degrades.
		rep.Note = "fewer than two perspectives answered"
		finalize(state, rep, true)
		return
	}
	if e.deadlineExpired(state, rep) {
		return
	}

	finalize(state, rep, outcome.FailureCount > 0)
}

// perspectiveFindings normalizes each perspective's response. Failed calls
// yield an empty raw entry so the envelope always names all launched
// perspectives.
func perspectiveFindings(results []models.ReviewResult) []report.PerspectiveFinding {
	out := make([]report.PerspectiveFinding, 0, len(results))
	for _, r := range results {
		pf := report.PerspectiveFinding{Perspective: r.Perspective}
		if !r.Succeeded {
			pf.Raw = true
			out = append(out, pf)
			continue
		}

		res := normalize.JSON(r.Content, json.RawMessage(`{}`), &normalize.Hint{Kind: normalize.KindObject})
		var parsed struct {
			Findings []string `json:"findings"`
			Summary  string   `json:"summary"`
		}
		if res.Fallback || json.Unmarshal(res.Value, &parsed) != nil {
			pf.Raw = true
			pf.Summary = strings.TrimSpace(r.Content)
			out = append(out, pf)
			continue
		}
		pf.Findings = parsed.Findings
		pf.Summary = parsed.Summary
		out = append(out, pf)
	}
	return out
}
