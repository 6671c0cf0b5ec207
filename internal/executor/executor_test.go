package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tribunal/internal/models"
)

// scriptedInvoker returns canned outcomes keyed by reviewer+mode and records
// every launch.
type scriptedInvoker struct {
	mu       sync.Mutex
	launches []launch
	fail     map[string]models.ErrorKind // "reviewer/mode" -> failure kind
	delay    time.Duration
	calls    atomic.Int32
}

type launch struct {
	reviewer string
	mode     models.ReviewMode
	at       time.Time
}

func key(reviewer string, mode models.ReviewMode) string {
	return reviewer + "/" + string(mode)
}

func (s *scriptedInvoker) Invoke(ctx context.Context, req models.ReviewRequest) models.ReviewResult {
	s.calls.Add(1)
	s.mu.Lock()
	s.launches = append(s.launches, launch{req.ReviewerID, req.Mode, time.Now()})
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	res := models.ReviewResult{
		ReviewerID: req.ReviewerID,
		Mode:       req.Mode,
		CostCents:  10,
		Latency:    s.delay,
	}
	if kind, ok := s.fail[key(req.ReviewerID, req.Mode)]; ok {
		res.ErrorKind = kind
		return res
	}
	res.Succeeded = true
	res.Content = `[]`
	return res
}

func TestExecuteCountsInvariant(t *testing.T) {
	inv := &scriptedInvoker{fail: map[string]models.ErrorKind{
		"b/review": models.ErrKindTimeout,
	}}
	e := New(inv)

	jobs := []Job{
		{ReviewerID: "a", Mode: models.ReviewModeReview},
		{ReviewerID: "b", Mode: models.ReviewModeReview},
		{ReviewerID: "c", Mode: models.ReviewModeReview},
	}
	out := e.Execute(context.Background(), jobs, Options{PhaseName: "PHASE1", RequiredMinimum: 2})

	assert.Equal(t, len(jobs), out.SuccessCount+out.FailureCount)
	assert.Len(t, out.Results, len(jobs))
	assert.Equal(t, 2, out.SuccessCount)
	assert.Equal(t, 1, out.FailureCount)
	assert.True(t, out.QuorumMet)
	assert.True(t, out.Degraded())
}

func TestExecuteQuorumInvariant(t *testing.T) {
	tests := []struct {
		name      string
		failures  map[string]models.ErrorKind
		required  int
		wantQuorum bool
	}{
		{"all succeed", nil, 2, true},
		{"exactly at minimum", map[string]models.ErrorKind{"a/review": models.ErrKindProviderError}, 2, true},
		{"below minimum", map[string]models.ErrorKind{"a/review": models.ErrKindProviderError, "b/review": models.ErrKindTimeout}, 2, false},
		{"zero successes", map[string]models.ErrorKind{
			"a/review": models.ErrKindTimeout, "b/review": models.ErrKindTimeout, "c/review": models.ErrKindTimeout,
		}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(&scriptedInvoker{fail: tt.failures})
			out := e.Execute(context.Background(), []Job{
				{ReviewerID: "a", Mode: models.ReviewModeReview},
				{ReviewerID: "b", Mode: models.ReviewModeReview},
				{ReviewerID: "c", Mode: models.ReviewModeReview},
			}, Options{RequiredMinimum: tt.required})

			assert.Equal(t, tt.wantQuorum, out.QuorumMet)
			assert.Equal(t, out.QuorumMet, out.SuccessCount >= tt.required)
		})
	}
}

func TestExecuteStaggerSplitsWaves(t *testing.T) {
	inv := &scriptedInvoker{}
	e := New(inv)

	stagger := 60 * time.Millisecond
	jobs := []Job{
		{ReviewerID: "a", Mode: models.ReviewModeReview},
		{ReviewerID: "b", Mode: models.ReviewModeReview},
		{ReviewerID: "a", Mode: models.ReviewModeSkeptic},
		{ReviewerID: "b", Mode: models.ReviewModeSkeptic},
	}
	out := e.Execute(context.Background(), jobs, Options{Stagger: stagger, RequiredMinimum: 1})
	require.Equal(t, 4, out.SuccessCount)

	inv.mu.Lock()
	defer inv.mu.Unlock()
	var reviewLast, skepticFirst time.Time
	for _, l := range inv.launches {
		if l.mode == models.ReviewModeReview && l.at.After(reviewLast) {
			reviewLast = l.at
		}
		if l.mode == models.ReviewModeSkeptic && (skepticFirst.IsZero() || l.at.Before(skepticFirst)) {
			skepticFirst = l.at
		}
	}
	// The skeptic wave launches only after the review wave has been
	// dispatched plus the stagger delay.
	assert.True(t, skepticFirst.Sub(reviewLast) >= stagger/2,
		"skeptic wave launched %v after last review launch", skepticFirst.Sub(reviewLast))
}

func TestExecuteNoStaggerSingleWave(t *testing.T) {
	inv := &scriptedInvoker{delay: 30 * time.Millisecond}
	e := New(inv)

	start := time.Now()
	out := e.Execute(context.Background(), []Job{
		{ReviewerID: "a", Mode: models.ReviewModeReview},
		{ReviewerID: "b", Mode: models.ReviewModeReview},
		{ReviewerID: "c", Mode: models.ReviewModeReview},
	}, Options{RequiredMinimum: 1})

	assert.Equal(t, 3, out.SuccessCount)
	// Concurrent, not sequential: three 30ms calls well under 90ms.
	assert.Less(t, time.Since(start), 80*time.Millisecond)
}

func TestExecuteJoinWaitsForAllJobs(t *testing.T) {
	inv := &scriptedInvoker{delay: 40 * time.Millisecond, fail: map[string]models.ErrorKind{
		"a/review": models.ErrKindProviderError,
	}}
	e := New(inv)

	out := e.Execute(context.Background(), []Job{
		{ReviewerID: "a", Mode: models.ReviewModeReview},
		{ReviewerID: "b", Mode: models.ReviewModeReview},
	}, Options{RequiredMinimum: 1})

	// An early failure never abandons the other in-flight job.
	assert.Len(t, out.Results, 2)
	assert.Equal(t, int32(2), inv.calls.Load())
	for _, r := range out.Results {
		assert.NotEmpty(t, r.ReviewerID, "every slot joined")
	}
}

func TestExecuteNoRetries(t *testing.T) {
	inv := &scriptedInvoker{fail: map[string]models.ErrorKind{
		"a/review": models.ErrKindTimeout,
	}}
	e := New(inv)

	e.Execute(context.Background(), []Job{{ReviewerID: "a", Mode: models.ReviewModeReview}}, Options{})
	assert.Equal(t, int32(1), inv.calls.Load(), "failed jobs are not retried inside the executor")
}

func TestExecuteResultsKeepLaunchOrder(t *testing.T) {
	inv := &scriptedInvoker{}
	e := New(inv)

	jobs := []Job{
		{ReviewerID: "z", Mode: models.ReviewModeReview},
		{ReviewerID: "a", Mode: models.ReviewModeReview},
	}
	out := e.Execute(context.Background(), jobs, Options{RequiredMinimum: 1})
	assert.Equal(t, "z", out.Results[0].ReviewerID)
	assert.Equal(t, "a", out.Results[1].ReviewerID)
}

func TestExecuteOutcomeCost(t *testing.T) {
	e := New(&scriptedInvoker{})
	out := e.Execute(context.Background(), []Job{
		{ReviewerID: "a", Mode: models.ReviewModeReview},
		{ReviewerID: "b", Mode: models.ReviewModeReview},
	}, Options{RequiredMinimum: 1})
	assert.Equal(t, 20, out.CostCents())
}
