package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/tribunal/internal/output"
)

var (
	budgetRunID string
	budgetLimit int
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show metered spend from the cost ledger",
	Long: `Show metered spend from the cost ledger.

With --run, shows that run's entries and total. Without it, shows
today's total spend (UTC day boundary).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return budgetRun(cmd)
	},
}

func init() {
	budgetCmd.Flags().StringVar(&budgetRunID, "run", "", "Run ID to report on")
	budgetCmd.Flags().IntVar(&budgetLimit, "limit", 50, "Maximum ledger entries to show")
	rootCmd.AddCommand(budgetCmd)
}

func budgetRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if budgetRunID == "" {
		midnight := time.Now().UTC().Truncate(24 * time.Hour)
		spent, err := s.SpendCentsSince(ctx, midnight)
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}
		ui.Info("Spend since %s: %s", midnight.Format("2006-01-02"), output.Green(fmt.Sprintf("$%.2f", float64(spent)/100.0)))
		return nil
	}

	spent, err := s.RunSpendCents(ctx, budgetRunID)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	entries, err := s.ListLedgerEntries(ctx, budgetRunID, budgetLimit)
	if err != nil {
		return fmt.Errorf("list ledger entries: %w", err)
	}

	ui.Info("Run %s: %s across %d calls", output.Cyan(budgetRunID),
		output.Green(fmt.Sprintf("$%.2f", float64(spent)/100.0)), len(entries))

	if len(entries) == 0 {
		return nil
	}
	table := ui.Table([]string{"REVIEWER", "MODE", "TOKENS IN", "TOKENS OUT", "LATENCY", "COST"})
	for _, e := range entries {
		table.Append([]string{
			e.ReviewerID,
			e.Mode,
			fmt.Sprintf("%d", e.TokensIn),
			fmt.Sprintf("%d", e.TokensOut),
			fmt.Sprintf("%dms", e.LatencyMs),
			fmt.Sprintf("$%.2f", float64(e.CostCents)/100.0),
		})
	}
	table.Render()
	return nil
}
