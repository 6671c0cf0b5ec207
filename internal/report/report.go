// Package report builds the final run envelope. The same envelope shape is
// produced by every mode; mode-specific payloads hang off optional fields.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/output"
)

// Execution records which pipeline actually ran and why.
type Execution struct {
	Mode   models.Mode `json:"mode"`
	Reason string      `json:"reason,omitempty"`
	RunID  string      `json:"run_id"`
}

// Metrics aggregates spend and latency for the whole run.
type Metrics struct {
	LatencyMs int64   `json:"latency_ms"`
	CostCents int     `json:"cost_cents"`
	CostUSD   float64 `json:"cost_usd"`
	Tokens    int     `json:"tokens"`
}

// PerspectiveFinding is one perspective's contribution to an inquiry run.
// Raw marks findings that could not be normalized and are passed through
// verbatim rather than fabricated.
type PerspectiveFinding struct {
	Perspective string   `json:"perspective"`
	Findings    []string `json:"findings"`
	Summary     string   `json:"summary,omitempty"`
	Raw         bool     `json:"raw,omitempty"`
}

// Report is the single output artifact of a run.
type Report struct {
	Phase    models.DocPhase `json:"phase"`
	Document string          `json:"document"`
	Domain   string          `json:"domain"`

	Execution Execution `json:"execution"`
	Metrics   Metrics   `json:"metrics"`

	Status   models.RunStatus `json:"status"`
	StatusID string           `json:"status_id"`
	Degraded bool             `json:"degraded,omitempty"`
	Note     string           `json:"note,omitempty"`

	Consensus *models.ConsensusSummary `json:"consensus,omitempty"`
	Reviews   []models.ReviewResult    `json:"reviews,omitempty"`
	Inquiry   []PerspectiveFinding     `json:"inquiry,omitempty"`
	RedTeam   json.RawMessage          `json:"red_team,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// SetStatus keeps the numeric status and its string id in sync.
func (r *Report) SetStatus(s models.RunStatus) {
	r.Status = s
	r.StatusID = s.String()
}

// AddWarning appends a warning, skipping empties.
func (r *Report) AddWarning(format string, a ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, a...))
	if msg != "" {
		r.Warnings = append(r.Warnings, msg)
	}
}

// SetMetrics fills metrics from accumulated spend. CostUSD is derived from
// cents, never tracked separately.
func (r *Report) SetMetrics(latencyMs int64, costCents, tokens int) {
	r.Metrics = Metrics{
		LatencyMs: latencyMs,
		CostCents: costCents,
		CostUSD:   float64(costCents) / 100.0,
		Tokens:    tokens,
	}
}

// JSON marshals the report for machine consumers.
func (r *Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	return string(data), nil
}

// Render prints a human-readable summary of the report.
func Render(ui *output.UI, r *Report) {
	ui.Info("Run %s  mode=%s  phase=%s  doc=%s",
		output.Cyan(r.Execution.RunID), r.Execution.Mode, r.Phase, r.Document)
	if r.Domain != "" {
		ui.Info("Domain: %s", r.Domain)
	}
	if r.Execution.Reason != "" {
		ui.Info("Routing: %s", r.Execution.Reason)
	}

	statusLine := fmt.Sprintf("Status: %s (exit %d)", output.StatusColor(r.Status), int(r.Status))
	if r.Degraded {
		statusLine += "  " + output.Yellow("[degraded]")
	}
	ui.Info("%s", statusLine)
	if r.Note != "" {
		ui.Info("Note: %s", r.Note)
	}

	ui.Info("Spend: $%.2f (%d tokens)  latency %dms",
		r.Metrics.CostUSD, r.Metrics.Tokens, r.Metrics.LatencyMs)

	if r.Consensus != nil {
		renderConsensus(ui, r.Consensus)
	}
	if len(r.Inquiry) > 0 {
		renderInquiry(ui, r.Inquiry)
	}
	if r.Consensus == nil && len(r.Reviews) > 0 {
		renderReviews(ui, r.Reviews)
	}

	for _, w := range r.Warnings {
		ui.Warning("%s", w)
	}
}

func renderConsensus(ui *output.UI, sum *models.ConsensusSummary) {
	ui.Info("Consensus: %d high, %d disputed, %d low-value, %d blockers (%.0f%% agreement)",
		sum.HighConsensus, sum.Disputed, sum.LowValue, sum.Blockers, sum.PercentAgreement)

	if len(sum.Items) == 0 {
		return
	}
	table := ui.Table([]string{"ITEM", "CLASS", "SOURCE", "DESCRIPTION"})
	for _, ci := range sum.Items {
		table.Append([]string{
			ci.ItemID,
			output.ClassificationColor(ci.Classification),
			ci.SourceReviewer,
			truncate(ci.Description, 72),
		})
	}
	table.Render()
}

func renderInquiry(ui *output.UI, findings []PerspectiveFinding) {
	for _, pf := range findings {
		label := pf.Perspective
		if pf.Raw {
			label += " " + output.Yellow("(raw)")
		}
		ui.Info("Perspective %s: %d findings", output.Cyan(label), len(pf.Findings))
		for _, f := range pf.Findings {
			ui.Info("  - %s", truncate(f, 96))
		}
		if pf.Summary != "" {
			ui.Info("  %s", truncate(pf.Summary, 96))
		}
	}
}

func renderReviews(ui *output.UI, reviews []models.ReviewResult) {
	table := ui.Table([]string{"REVIEWER", "MODE", "OK", "COST", "LATENCY"})
	for _, rr := range reviews {
		okCol := output.Green("yes")
		if !rr.Succeeded {
			okCol = output.Red(string(rr.ErrorKind))
		}
		table.Append([]string{
			rr.ReviewerID,
			string(rr.Mode),
			okCol,
			fmt.Sprintf("$%.2f", float64(rr.CostCents)/100.0),
			rr.Latency.Truncate(time.Millisecond).String(),
		})
	}
	table.Render()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
