package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/tribunal/internal/output"
)

var reviewersCmd = &cobra.Command{
	Use:   "reviewers",
	Short: "List the configured reviewer roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewersRun()
	},
}

func init() {
	rootCmd.AddCommand(reviewersCmd)
}

func reviewersRun() error {
	r, err := loadRoster()
	if err != nil {
		return err
	}

	table := ui.Table([]string{"ID", "BACKEND", "MODEL / COMMAND", "IN ¢/MTOK", "OUT ¢/MTOK", "ROLE"})
	for _, rev := range r.Reviewers {
		target := rev.Model
		if target == "" {
			target = strings.Join(rev.Command, " ")
		}
		role := "primary"
		if rev.Tertiary {
			role = output.Cyan("tertiary")
		}
		table.Append([]string{
			rev.ID,
			string(rev.Backend),
			target,
			fmt.Sprintf("%d", rev.InputCentsPerMTok),
			fmt.Sprintf("%d", rev.OutputCentsPerMTok),
			role,
		})
	}
	table.Render()
	return nil
}
