package models

import "time"

// ReviewMode is the kind of work a single reviewer call performs.
type ReviewMode string

const (
	// ReviewModeReview asks for independent improvement items.
	ReviewModeReview ReviewMode = "review"
	// ReviewModeSkeptic surfaces risks and blockers independent of the
	// main review.
	ReviewModeSkeptic ReviewMode = "skeptic"
	// ReviewModeScore cross-scores another reviewer's items.
	ReviewModeScore ReviewMode = "score"
	// ReviewModeDissent asks a reviewer to argue against the emerging
	// consensus.
	ReviewModeDissent ReviewMode = "dissent"
)

// ReviewRequest describes one bounded reviewer call. Immutable, created
// per call.
type ReviewRequest struct {
	RunID       string
	ReviewerID  string
	Mode        ReviewMode
	Perspective string // inquiry only: structural | historical | governance
	DocumentRef string
	ContextRef  string
	Timeout     time.Duration
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ReviewResult is the uniform outcome of one reviewer call, produced on both
// the direct and the legacy adapter paths. Owned by the executor until merged
// into a PhaseOutcome.
type ReviewResult struct {
	ReviewerID  string        `json:"reviewer_id"`
	Mode        ReviewMode    `json:"mode"`
	Perspective string        `json:"perspective,omitempty"`
	Content     string        `json:"content,omitempty"`
	TokensIn    int           `json:"tokens_in"`
	TokensOut   int           `json:"tokens_out"`
	Latency     time.Duration `json:"latency_ms"`
	CostCents   int           `json:"cost_cents"`
	Succeeded   bool          `json:"succeeded"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	CapturePath string        `json:"capture_path,omitempty"`
}
