// Package mcp exposes tribunal runs and budget metering as MCP tools over
// stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/report"
	"github.com/joescharf/tribunal/internal/roster"
	"github.com/joescharf/tribunal/internal/store"
)

// Runner executes one run and returns its report. The cmd layer supplies
// this so the server stays decoupled from engine wiring.
type Runner func(ctx context.Context, cfg models.RunConfig) *report.Report

// Server wraps the run pipeline and the cost ledger as MCP tools.
type Server struct {
	run    Runner
	store  store.Store
	roster *roster.Roster
}

// NewServer creates the MCP server wrapper.
func NewServer(run Runner, s store.Store, r *roster.Roster) *Server {
	return &Server{run: run, store: s, roster: r}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("tribunal", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.runReviewTool())
	srv.AddTool(s.budgetStatusTool())
	srv.AddTool(s.listReviewersTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// tribunal_run_review
func (s *Server) runReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tribunal_run_review",
		mcp.WithDescription("Run a multi-reviewer assessment of a planning document and return the full report as JSON. Modes: review (consensus pipeline), red-team (adversarial), inquiry (three perspectives). The report's status field doubles as the run's exit code."),
		mcp.WithString("doc", mcp.Required(), mcp.Description("Path to the document to review")),
		mcp.WithString("phase", mcp.Required(), mcp.Description("Document phase: prd, sdd, sprint, beads, spec")),
		mcp.WithString("mode", mcp.Description("Run mode: review (default), red-team, inquiry")),
		mcp.WithString("domain", mcp.Description("Domain label recorded on the report")),
		mcp.WithNumber("budget_cents", mcp.Description("Per-run spend ceiling in cents (0 = unlimited)")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Cumulative wall-clock deadline in seconds (0 = none)")),
		mcp.WithBoolean("skip_knowledge", mcp.Description("Skip the knowledge retrieval phase")),
		mcp.WithBoolean("skip_consensus", mcp.Description("Stop after independent reviews; skip scoring and consensus")),
	)
	return tool, s.handleRunReview
}

func (s *Server) handleRunReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := request.RequireString("doc")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: doc"), nil
	}
	phase, err := request.RequireString("phase")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: phase"), nil
	}

	cfg := models.RunConfig{
		Mode:          models.Mode(request.GetString("mode", string(models.ModeReview))),
		DocPath:       doc,
		Domain:        request.GetString("domain", ""),
		DocPhase:      models.DocPhase(phase),
		BudgetCents:   request.GetInt("budget_cents", 0),
		Timeout:       time.Duration(request.GetInt("timeout_seconds", 0)) * time.Second,
		SkipKnowledge: request.GetBool("skip_knowledge", false),
		SkipConsensus: request.GetBool("skip_consensus", false),
	}

	rep := s.run(ctx, cfg)
	out, err := rep.JSON()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal report: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// tribunal_budget_status
func (s *Server) budgetStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tribunal_budget_status",
		mcp.WithDescription("Report metered spend from the cost ledger. With run_id, returns that run's spend and its entries; otherwise returns today's total spend (UTC)."),
		mcp.WithString("run_id", mcp.Description("Run ID to report on")),
	)
	return tool, s.handleBudgetStatus
}

func (s *Server) handleBudgetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no ledger store configured"), nil
	}

	runID := request.GetString("run_id", "")
	if runID == "" {
		midnight := time.Now().UTC().Truncate(24 * time.Hour)
		spent, err := s.store.SpendCentsSince(ctx, midnight)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read ledger: %v", err)), nil
		}
		data, _ := json.Marshal(map[string]any{
			"since":       midnight.Format(time.RFC3339),
			"spent_cents": spent,
			"spent_usd":   float64(spent) / 100.0,
		})
		return mcp.NewToolResultText(string(data)), nil
	}

	spent, err := s.store.RunSpendCents(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read ledger: %v", err)), nil
	}
	entries, err := s.store.ListLedgerEntries(ctx, runID, 100)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list ledger entries: %v", err)), nil
	}

	type entryOut struct {
		Reviewer  string `json:"reviewer"`
		Mode      string `json:"mode"`
		TokensIn  int    `json:"tokens_in"`
		TokensOut int    `json:"tokens_out"`
		LatencyMs int64  `json:"latency_ms"`
		CostCents int    `json:"cost_cents"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]entryOut, len(entries))
	for i, e := range entries {
		out[i] = entryOut{
			Reviewer:  e.ReviewerID,
			Mode:      e.Mode,
			TokensIn:  e.TokensIn,
			TokensOut: e.TokensOut,
			LatencyMs: e.LatencyMs,
			CostCents: e.CostCents,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}

	data, _ := json.Marshal(map[string]any{
		"run_id":      runID,
		"spent_cents": spent,
		"spent_usd":   float64(spent) / 100.0,
		"entries":     out,
	})
	return mcp.NewToolResultText(string(data)), nil
}

// tribunal_list_reviewers
func (s *Server) listReviewersTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tribunal_list_reviewers",
		mcp.WithDescription("List the configured reviewer roster: id, backend (direct or legacy), model, pricing, and whether the reviewer is tertiary."),
	)
	return tool, s.handleListReviewers
}

func (s *Server) handleListReviewers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type reviewerOut struct {
		ID                 string `json:"id"`
		Backend            string `json:"backend"`
		Model              string `json:"model,omitempty"`
		InputCentsPerMTok  int    `json:"input_cents_per_mtok"`
		OutputCentsPerMTok int    `json:"output_cents_per_mtok"`
		Tertiary           bool   `json:"tertiary"`
	}

	out := make([]reviewerOut, len(s.roster.Reviewers))
	for i, rev := range s.roster.Reviewers {
		out[i] = reviewerOut{
			ID:                 rev.ID,
			Backend:            string(rev.Backend),
			Model:              rev.Model,
			InputCentsPerMTok:  rev.InputCentsPerMTok,
			OutputCentsPerMTok: rev.OutputCentsPerMTok,
			Tertiary:           rev.Tertiary,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal reviewers: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
