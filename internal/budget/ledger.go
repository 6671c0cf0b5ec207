// Package budget tracks cumulative run cost and gates admission to
// subsequent phases.
package budget

import (
	"context"
	"time"

	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/store"
)

// Ledger is the single-owner mutable budget state for one run. It is
// updated only at phase join points, never from concurrent call handlers,
// so it carries no lock. Accumulation is additive and monotonic.
type Ledger struct {
	runID        string
	ceilingCents int

	totalCents  int
	totalTokens int

	// Optional persistence and cross-run daily ceiling.
	store             store.Store
	dailyCeilingCents int
}

// NewLedger creates a ledger with a per-run ceiling in integer cents.
// A zero ceiling means unlimited.
func NewLedger(runID string, ceilingCents int) *Ledger {
	return &Ledger{runID: runID, ceilingCents: ceilingCents}
}

// WithStore attaches persistent metering and an optional daily ceiling
// enforced across runs.
func (l *Ledger) WithStore(s store.Store, dailyCeilingCents int) *Ledger {
	l.store = s
	l.dailyCeilingCents = dailyCeilingCents
	return l
}

// Admit reports whether a phase with the given estimated cost may launch.
// A deny skips the dependent phase, not the whole run. The daily ceiling
// check is best-effort: a store read failure never blocks admission.
func (l *Ledger) Admit(ctx context.Context, estimatedCents int) bool {
	if l.ceilingCents > 0 && l.totalCents+estimatedCents > l.ceilingCents {
		return false
	}
	if l.store != nil && l.dailyCeilingCents > 0 {
		midnight := time.Now().UTC().Truncate(24 * time.Hour)
		spent, err := l.store.SpendCentsSince(ctx, midnight)
		if err == nil && spent+estimatedCents > l.dailyCeilingCents {
			return false
		}
	}
	return true
}

// Record accumulates one result's actual cost and tokens, and appends a
// metering entry when persistence is attached. Called once per ReviewResult
// at phase join.
func (l *Ledger) Record(ctx context.Context, res models.ReviewResult) error {
	l.totalCents += res.CostCents
	l.totalTokens += res.TokensIn + res.TokensOut

	if l.store == nil {
		return nil
	}
	return l.store.AppendLedgerEntry(ctx, &store.LedgerEntry{
		RunID:      l.runID,
		ReviewerID: res.ReviewerID,
		Mode:       string(res.Mode),
		TokensIn:   res.TokensIn,
		TokensOut:  res.TokensOut,
		LatencyMs:  res.Latency.Milliseconds(),
		CostCents:  res.CostCents,
	})
}

// RecordOutcome records every result of a joined phase.
func (l *Ledger) RecordOutcome(ctx context.Context, outcome *models.PhaseOutcome) error {
	for _, res := range outcome.Results {
		if err := l.Record(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

// TotalCents returns the run's accumulated cost.
func (l *Ledger) TotalCents() int { return l.totalCents }

// TotalTokens returns the run's accumulated token count.
func (l *Ledger) TotalTokens() int { return l.totalTokens }

// CeilingCents returns the configured per-run ceiling (0 = unlimited).
func (l *Ledger) CeilingCents() int { return l.ceilingCents }
