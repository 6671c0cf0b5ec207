// Package executor fans a batch of reviewer calls out concurrently,
// optionally in staggered waves, joins on completion, and applies the
// phase's quorum policy. No other component spawns concurrent work.
package executor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/tribunal/internal/models"
)

// Invoker performs one bounded reviewer call. Satisfied by
// reviewer.Invoker; tests substitute fakes.
type Invoker interface {
	Invoke(ctx context.Context, req models.ReviewRequest) models.ReviewResult
}

// Job describes one call within a phase.
type Job struct {
	ReviewerID  string
	Mode        models.ReviewMode
	Perspective string
	ContextRef  string
}

// Options configures one Execute call.
type Options struct {
	PhaseName   string
	RunID       string
	DocumentRef string
	// Stagger > 0 splits jobs into per-mode waves launched in first-seen
	// mode order, sleeping between wave launches. Launch order only;
	// completion order is unconstrained.
	Stagger time.Duration
	// Timeout bounds each individual call.
	Timeout time.Duration
	// RequiredMinimum successes for the phase to be usable. Values < 1
	// are treated as 1.
	RequiredMinimum int
}

// Executor runs scatter-gather phases.
type Executor struct {
	invoker Invoker
}

// New creates an executor over the given invoker.
func New(inv Invoker) *Executor {
	return &Executor{invoker: inv}
}

// Execute launches every job, blocks until all have completed or
// individually timed out, and returns the joined outcome. No job is
// abandoned mid-flight, and failed jobs are never retried here; retry is a
// whole-phase decision made by the caller.
func (e *Executor) Execute(ctx context.Context, jobs []Job, opts Options) *models.PhaseOutcome {
	required := opts.RequiredMinimum
	if required < 1 {
		required = 1
	}

	results := make([]models.ReviewResult, len(jobs))

	// The group is used purely as a join barrier: workers always return
	// nil so one failure never cancels calls still in flight.
	var g errgroup.Group
	waves := splitWaves(jobs)
	for w, wave := range waves {
		if w > 0 && opts.Stagger > 0 {
			sleep(ctx, opts.Stagger)
		}
		for _, idx := range wave {
			job := jobs[idx]
			slot := &results[idx]
			g.Go(func() error {
				*slot = e.invoker.Invoke(ctx, models.ReviewRequest{
					RunID:       opts.RunID,
					ReviewerID:  job.ReviewerID,
					Mode:        job.Mode,
					Perspective: job.Perspective,
					DocumentRef: opts.DocumentRef,
					ContextRef:  job.ContextRef,
					Timeout:     opts.Timeout,
				})
				return nil
			})
		}
	}
	_ = g.Wait()

	outcome := &models.PhaseOutcome{
		PhaseName:       opts.PhaseName,
		Results:         results,
		RequiredMinimum: required,
	}
	for _, r := range results {
		if r.Succeeded {
			outcome.SuccessCount++
		} else {
			outcome.FailureCount++
		}
	}
	outcome.QuorumMet = outcome.SuccessCount >= required
	return outcome
}

// splitWaves groups job indices by mode, preserving first-seen mode order.
// A single-mode batch is one wave.
func splitWaves(jobs []Job) [][]int {
	var order []models.ReviewMode
	byMode := make(map[models.ReviewMode][]int)
	for i, j := range jobs {
		if _, ok := byMode[j.Mode]; !ok {
			order = append(order, j.Mode)
		}
		byMode[j.Mode] = append(byMode[j.Mode], i)
	}
	waves := make([][]int, 0, len(order))
	for _, m := range order {
		waves = append(waves, byMode[m])
	}
	return waves
}

// sleep waits for d or until ctx is done. A cancelled context only cuts the
// stagger delay short; the remaining waves still launch and their calls
// fail fast under the dead context.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
