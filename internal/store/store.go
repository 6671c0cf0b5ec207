package store

import (
	"context"
	"time"
)

// LedgerEntry records the metered cost of one reviewer call.
type LedgerEntry struct {
	ID            string
	RunID         string
	ReviewerID    string
	Mode          string
	TokensIn      int
	TokensOut     int
	LatencyMs     int64
	CostCents     int
	PricingSource string // "roster" when rates came from config, "estimate" otherwise
	CreatedAt     time.Time
}

// Store is the persistence interface for the cost ledger.
type Store interface {
	AppendLedgerEntry(ctx context.Context, e *LedgerEntry) error
	ListLedgerEntries(ctx context.Context, runID string, limit int) ([]*LedgerEntry, error)
	RunSpendCents(ctx context.Context, runID string) (int, error)
	SpendCentsSince(ctx context.Context, since time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
