package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/roster"
)

// fakeInvoker answers calls from a response function and records every
// request it sees.
type fakeInvoker struct {
	mu      sync.Mutex
	calls   []models.ReviewRequest
	delay   time.Duration
	respond func(req models.ReviewRequest) models.ReviewResult
}

func (f *fakeInvoker) Invoke(_ context.Context, req models.ReviewRequest) models.ReviewResult {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.respond(req)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testRoster() *roster.Roster {
	return &roster.Roster{Reviewers: []roster.Reviewer{
		{ID: "alpha", Backend: roster.BackendDirect, Model: "m"},
		{ID: "beta", Backend: roster.BackendDirect, Model: "m"},
	}}
}

func tertiaryRoster() *roster.Roster {
	r := testRoster()
	r.Reviewers = append(r.Reviewers, roster.Reviewer{
		ID: "gamma", Backend: roster.BackendDirect, Model: "m", Tertiary: true,
	})
	return r
}

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Plan\n\nShip it."), 0o644))
	return path
}

func reviewCfg(doc string) models.RunConfig {
	return models.RunConfig{
		Mode:     models.ModeReview,
		DocPath:  doc,
		DocPhase: models.DocPhasePRD,
	}
}

// cooperative answers every mode with well-formed favorable output.
func cooperative(req models.ReviewRequest) models.ReviewResult {
	res := models.ReviewResult{
		ReviewerID: req.ReviewerID,
		Mode:       req.Mode,
		Succeeded:  true,
		TokensIn:   100,
		TokensOut:  50,
		CostCents:  20,
	}
	switch req.Mode {
	case models.ReviewModeReview:
		res.Content = `[{"id":"x","description":"tighten the rollout plan"}]`
	case models.ReviewModeSkeptic:
		res.Content = `[]`
	case models.ReviewModeScore:
		res.Content = `{"alpha:x": 9, "beta:x": 8}`
	}
	return res
}

func TestRunReviewHappyPath(t *testing.T) {
	inv := &fakeInvoker{respond: cooperative}
	e := New(testRoster(), inv, Options{})

	cfg := reviewCfg(writeDoc(t))
	cfg.Domain = "payments"
	rep := e.Run(context.Background(), cfg)

	assert.Equal(t, models.StatusOK, rep.Status)
	assert.Equal(t, "payments", rep.Domain)
	assert.False(t, rep.Degraded)
	require.NotNil(t, rep.Consensus)
	assert.Equal(t, 2, rep.Consensus.HighConsensus)
	assert.InDelta(t, 100.0, rep.Consensus.PercentAgreement, 0.001)

	// 2 reviews + 2 skeptics + 2 cross-score pairs.
	assert.Equal(t, 6, inv.callCount())
	assert.Equal(t, 6*20, rep.Metrics.CostCents)
	assert.Equal(t, 6*150, rep.Metrics.Tokens)
	assert.NotEmpty(t, rep.Execution.RunID)
}

func TestRunReviewDegradedOnPartialFailure(t *testing.T) {
	inv := &fakeInvoker{respond: func(req models.ReviewRequest) models.ReviewResult {
		if req.ReviewerID == "beta" {
			return models.ReviewResult{
				ReviewerID: req.ReviewerID, Mode: req.Mode,
				ErrorKind: models.ErrKindTimeout, Error: "deadline",
			}
		}
		return cooperative(req)
	}}
	e := New(testRoster(), inv, Options{})

	rep := e.Run(context.Background(), reviewCfg(writeDoc(t)))

	assert.Equal(t, models.StatusDegraded, rep.Status)
	assert.True(t, rep.Degraded)
	require.NotNil(t, rep.Consensus, "surviving reviews still reach consensus")
	assert.NotEmpty(t, rep.Warnings)
}

func TestRunReviewTertiaryQuorumSurvivesOneTimeout(t *testing.T) {
	inv := &fakeInvoker{respond: func(req models.ReviewRequest) models.ReviewResult {
		if req.ReviewerID == "gamma" && req.Mode == models.ReviewModeReview {
			return models.ReviewResult{
				ReviewerID: req.ReviewerID, Mode: req.Mode,
				ErrorKind: models.ErrKindTimeout, Error: "deadline",
			}
		}
		return cooperative(req)
	}}
	e := New(tertiaryRoster(), inv, Options{IncludeTertiary: true})

	rep := e.Run(context.Background(), reviewCfg(writeDoc(t)))

	assert.Equal(t, models.StatusDegraded, rep.Status)
	assert.True(t, rep.Degraded)
	require.NotNil(t, rep.Consensus, "two of three reviews meet the triangular quorum")
	assert.NotEmpty(t, rep.Warnings, "the timed-out call is noted")
	// 3 reviews + 3 skeptics + 4 cross-score pairs over the two authors.
	assert.Equal(t, 10, inv.callCount())
}

func TestRunReviewPartialQuorumDegrades(t *testing.T) {
	inv := &fakeInvoker{respond: func(req models.ReviewRequest) models.ReviewResult {
		if req.Mode == models.ReviewModeReview && req.ReviewerID != "alpha" {
			return models.ReviewResult{
				ReviewerID: req.ReviewerID, Mode: req.Mode,
				ErrorKind: models.ErrKindProviderError, Error: "boom",
			}
		}
		return cooperative(req)
	}}
	e := New(tertiaryRoster(), inv, Options{IncludeTertiary: true})

	rep := e.Run(context.Background(), reviewCfg(writeDoc(t)))

	assert.Equal(t, models.StatusDegraded, rep.Status, "one success below quorum degrades, never exit 3")
	assert.True(t, rep.Degraded)
	assert.Len(t, rep.Reviews, 6, "the surviving review ships with the failures")
	assert.Nil(t, rep.Consensus, "below quorum, cross-scoring is skipped")
	assert.Equal(t, "review quorum not met; consensus skipped", rep.Note)
	assert.Equal(t, 6, inv.callCount(), "no scoring calls below quorum")
}

func TestRunReviewZeroQuorum(t *testing.T) {
	inv := &fakeInvoker{respond: func(req models.ReviewRequest) models.ReviewResult {
		return models.ReviewResult{
			ReviewerID: req.ReviewerID, Mode: req.Mode,
			ErrorKind: models.ErrKindProviderError, Error: "boom",
		}
	}}
	e := New(testRoster(), inv, Options{})

	rep := e.Run(context.Background(), reviewCfg(writeDoc(t)))

	assert.Equal(t, models.StatusAllCallsFailed, rep.Status)
	assert.Nil(t, rep.Consensus)
	assert.Len(t, rep.Reviews, 4, "failed results still reported")
	// Only the one joined phase ran; no scoring was attempted.
	assert.Equal(t, 4, inv.callCount())
}

func TestRunReviewBudgetDeniedBeforeLaunch(t *testing.T) {
	inv := &fakeInvoker{respond: cooperative}
	e := New(testRoster(), inv, Options{PhaseEstimateCents: 10})

	cfg := reviewCfg(writeDoc(t))
	cfg.BudgetCents = 5
	rep := e.Run(context.Background(), cfg)

	assert.Equal(t, models.StatusBudgetExceeded, rep.Status)
	assert.Zero(t, inv.callCount(), "denied admission spends nothing")
}

func TestRunReviewBudgetDegradesAfterPhase1(t *testing.T) {
	inv := &fakeInvoker{respond: cooperative}
	// Phase 1 costs 4*20=80 cents, blowing the 50 cent ceiling before
	// cross-scoring is admitted.
	e := New(testRoster(), inv, Options{PhaseEstimateCents: 10})

	cfg := reviewCfg(writeDoc(t))
	cfg.BudgetCents = 50
	rep := e.Run(context.Background(), cfg)

	assert.Equal(t, models.StatusDegraded, rep.Status)
	assert.Nil(t, rep.Consensus)
	assert.Len(t, rep.Reviews, 4, "reviews survive the budget stop")
	assert.Equal(t, 4, inv.callCount(), "no scoring calls after the deny")
	assert.Equal(t, "budget ceiling reached; cross-scoring and consensus skipped", rep.Note)
}

func TestRunReviewDeadlineAtPhaseBoundary(t *testing.T) {
	inv := &fakeInvoker{respond: cooperative, delay: 30 * time.Millisecond}
	e := New(testRoster(), inv, Options{})

	cfg := reviewCfg(writeDoc(t))
	cfg.Timeout = 10 * time.Millisecond
	rep := e.Run(context.Background(), cfg)

	assert.Equal(t, models.StatusDeadline, rep.Status)
	assert.Len(t, rep.Reviews, 4, "the joined phase is kept, not abandoned")
	assert.Nil(t, rep.Consensus)
}

func TestRunReviewSkipConsensus(t *testing.T) {
	inv := &fakeInvoker{respond: cooperative}
	e := New(testRoster(), inv, Options{})

	cfg := reviewCfg(writeDoc(t))
	cfg.SkipConsensus = true
	rep := e.Run(context.Background(), cfg)

	assert.Equal(t, models.StatusOK, rep.Status)
	assert.Nil(t, rep.Consensus)
	assert.Equal(t, 4, inv.callCount(), "no cross-scoring when consensus is skipped")
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, string, models.DocPhase) (string, error) {
	return "", errors.New("retriever offline")
}

func TestRunReviewKnowledgeFailureIsNonFatal(t *testing.T) {
	inv := &fakeInvoker{respond: cooperative}
	e := New(testRoster(), inv, Options{}).WithKnowledge(failingRetriever{})

	rep := e.Run(context.Background(), reviewCfg(writeDoc(t)))

	assert.Equal(t, models.StatusKnowledgeFailed, rep.Status)
	require.NotNil(t, rep.Consensus, "the run still completes")
	assert.NotEmpty(t, rep.Warnings)
}

func TestRunUnknownModeFailsBeforeSpend(t *testing.T) {
	inv := &fakeInvoker{respond: cooperative}
	e := New(testRoster(), inv, Options{})

	cfg := reviewCfg(writeDoc(t))
	cfg.Mode = "shakedown"
	rep := e.Run(context.Background(), cfg)

	assert.Equal(t, models.StatusConfigError, rep.Status)
	assert.Zero(t, inv.callCount())
	assert.Empty(t, rep.Execution.RunID, "no run id is minted for invalid config")
}

func TestRunMissingDocument(t *testing.T) {
	inv := &fakeInvoker{respond: cooperative}
	e := New(testRoster(), inv, Options{})

	cfg := reviewCfg(filepath.Join(t.TempDir(), "absent.md"))
	rep := e.Run(context.Background(), cfg)

	assert.Equal(t, models.StatusConfigError, rep.Status)
	assert.Zero(t, inv.callCount())
}

func TestPhase1MinimumDefaults(t *testing.T) {
	e := New(testRoster(), &fakeInvoker{}, Options{})
	assert.Equal(t, 1, e.phase1Minimum(2))
	assert.Equal(t, 2, e.phase1Minimum(3))

	e = New(testRoster(), &fakeInvoker{}, Options{Phase1Minimum: 3})
	assert.Equal(t, 3, e.phase1Minimum(2), "explicit minimum wins")
}

func TestDepthForBudget(t *testing.T) {
	assert.Equal(t, "deep", depthForBudget(0), "unlimited budget")
	assert.Equal(t, "shallow", depthForBudget(499))
	assert.Equal(t, "standard", depthForBudget(500))
	assert.Equal(t, "standard", depthForBudget(1999))
	assert.Equal(t, "deep", depthForBudget(2000))
}
