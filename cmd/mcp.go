package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/tribunal/internal/mcp"
	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/report"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an agent trigger tribunal runs and query the cost ledger
natively. Configure with:

  {
    "mcpServers": {
      "tribunal": { "command": "tribunal", "args": ["mcp"] }
    }
  }

Available tools: tribunal_run_review, tribunal_budget_status,
tribunal_list_reviewers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	r, err := loadRoster()
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		ui.Warning("cost ledger unavailable: %v", err)
		s = nil
	}

	runner := func(ctx context.Context, cfg models.RunConfig) *report.Report {
		e, err := newEngine(cfg.DocPath)
		if err != nil {
			rep := &report.Report{Phase: cfg.DocPhase, Document: cfg.DocPath}
			rep.SetStatus(models.StatusConfigError)
			rep.Note = err.Error()
			return rep
		}
		return e.Run(ctx, cfg)
	}

	srv := mcp.NewServer(runner, s, r)
	return srv.ServeStdio(cmd.Context())
}
