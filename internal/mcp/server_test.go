package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/report"
	"github.com/joescharf/tribunal/internal/roster"
	"github.com/joescharf/tribunal/internal/store"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockStore implements store.Store for testing.
type mockStore struct {
	entries []*store.LedgerEntry

	listErr  error
	spendErr error
}

func (m *mockStore) AppendLedgerEntry(_ context.Context, e *store.LedgerEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockStore) ListLedgerEntries(_ context.Context, runID string, limit int) ([]*store.LedgerEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*store.LedgerEntry
	for _, e := range m.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) RunSpendCents(_ context.Context, runID string) (int, error) {
	if m.spendErr != nil {
		return 0, m.spendErr
	}
	total := 0
	for _, e := range m.entries {
		if e.RunID == runID {
			total += e.CostCents
		}
	}
	return total, nil
}

func (m *mockStore) SpendCentsSince(_ context.Context, since time.Time) (int, error) {
	if m.spendErr != nil {
		return 0, m.spendErr
	}
	total := 0
	for _, e := range m.entries {
		if !e.CreatedAt.Before(since) {
			total += e.CostCents
		}
	}
	return total, nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(run Runner) (*Server, *mockStore) {
	ms := &mockStore{}
	return NewServer(run, ms, roster.Default()), ms
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHandleRunReview(t *testing.T) {
	var got models.RunConfig
	srv, _ := newTestServer(func(_ context.Context, cfg models.RunConfig) *report.Report {
		got = cfg
		rep := &report.Report{
			Phase:     cfg.DocPhase,
			Document:  cfg.DocPath,
			Execution: report.Execution{Mode: cfg.Mode, RunID: "01TEST"},
		}
		rep.SetStatus(models.StatusOK)
		return rep
	})

	req := callToolReq("tribunal_run_review", map[string]any{
		"doc":            "docs/prd.md",
		"phase":          "prd",
		"mode":           "inquiry",
		"domain":         "billing",
		"budget_cents":   float64(500),
		"skip_knowledge": true,
	})
	result, err := srv.handleRunReview(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	assert.Equal(t, models.ModeInquiry, got.Mode)
	assert.Equal(t, "billing", got.Domain)
	assert.Equal(t, 500, got.BudgetCents)
	assert.True(t, got.SkipKnowledge)

	var decoded map[string]any
	resultJSON(t, result, &decoded)
	assert.Equal(t, "ok", decoded["status_id"])
	assert.Equal(t, "docs/prd.md", decoded["document"])
}

func TestHandleRunReviewMissingDoc(t *testing.T) {
	srv, _ := newTestServer(nil)

	req := callToolReq("tribunal_run_review", map[string]any{"phase": "prd"})
	result, err := srv.handleRunReview(context.Background(), req)
	require.NoError(t, err, "handler should not return Go error; should wrap in result")
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleBudgetStatusForRun(t *testing.T) {
	srv, ms := newTestServer(nil)
	now := time.Now().UTC()
	ms.entries = []*store.LedgerEntry{
		{RunID: "01A", ReviewerID: "claude", Mode: "review", CostCents: 30, CreatedAt: now},
		{RunID: "01A", ReviewerID: "codex", Mode: "skeptic", CostCents: 12, CreatedAt: now},
		{RunID: "01B", ReviewerID: "claude", Mode: "review", CostCents: 99, CreatedAt: now},
	}

	req := callToolReq("tribunal_budget_status", map[string]any{"run_id": "01A"})
	result, err := srv.handleBudgetStatus(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var decoded struct {
		RunID      string `json:"run_id"`
		SpentCents int    `json:"spent_cents"`
		Entries    []struct {
			Reviewer  string `json:"reviewer"`
			CostCents int    `json:"cost_cents"`
		} `json:"entries"`
	}
	resultJSON(t, result, &decoded)
	assert.Equal(t, "01A", decoded.RunID)
	assert.Equal(t, 42, decoded.SpentCents)
	require.Len(t, decoded.Entries, 2)
	assert.Equal(t, "claude", decoded.Entries[0].Reviewer)
}

func TestHandleBudgetStatusDaily(t *testing.T) {
	srv, ms := newTestServer(nil)
	ms.entries = []*store.LedgerEntry{
		{RunID: "01A", CostCents: 55, CreatedAt: time.Now().UTC()},
		{RunID: "01B", CostCents: 100, CreatedAt: time.Now().UTC().Add(-48 * time.Hour)},
	}

	req := callToolReq("tribunal_budget_status", nil)
	result, err := srv.handleBudgetStatus(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var decoded struct {
		SpentCents int     `json:"spent_cents"`
		SpentUSD   float64 `json:"spent_usd"`
	}
	resultJSON(t, result, &decoded)
	assert.Equal(t, 55, decoded.SpentCents, "yesterday's spend excluded")
	assert.InDelta(t, 0.55, decoded.SpentUSD, 0.001)
}

func TestHandleBudgetStatusStoreError(t *testing.T) {
	srv, ms := newTestServer(nil)
	ms.spendErr = assert.AnError

	req := callToolReq("tribunal_budget_status", map[string]any{"run_id": "01A"})
	result, err := srv.handleBudgetStatus(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListReviewers(t *testing.T) {
	srv, _ := newTestServer(nil)

	result, err := srv.handleListReviewers(context.Background(), callToolReq("tribunal_list_reviewers", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var decoded []struct {
		ID       string `json:"id"`
		Backend  string `json:"backend"`
		Tertiary bool   `json:"tertiary"`
	}
	resultJSON(t, result, &decoded)
	require.Len(t, decoded, 3)
	assert.Equal(t, "claude", decoded[0].ID)
	assert.Equal(t, "direct", decoded[0].Backend)
	assert.True(t, decoded[2].Tertiary)
}
