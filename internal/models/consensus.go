package models

// Classification is the label assigned to an improvement item after merging
// cross-scores and skeptic flags.
type Classification string

const (
	ClassHighConsensus Classification = "high_consensus"
	ClassDisputed      Classification = "disputed"
	ClassLowValue      Classification = "low_value"
	ClassBlocker       Classification = "blocker"
)

// ImprovementItem is one proposed improvement from a reviewer's independent
// pass.
type ImprovementItem struct {
	ID          string `json:"id"`
	Reviewer    string `json:"reviewer"`
	Description string `json:"description"`
}

// SkepticFlag marks an item (or theme) a skeptic pass called out as a risk.
type SkepticFlag struct {
	Reviewer string `json:"reviewer"`
	ItemID   string `json:"item_id"`
	Concern  string `json:"concern"`
}

// ConsensusItem is one classified improvement item. Computed once during
// CONSENSUS, then immutable.
type ConsensusItem struct {
	ItemID           string         `json:"item_id"`
	SourceReviewer   string         `json:"source_reviewer"`
	Description      string         `json:"description"`
	ScoresByReviewer map[string]int `json:"scores_by_reviewer"`
	SkepticFlags     []SkepticFlag  `json:"skeptic_flags,omitempty"`
	Classification   Classification `json:"classification"`
}

// ConsensusSummary is the ranked output of the aggregator plus summary
// counts.
type ConsensusSummary struct {
	Items            []ConsensusItem `json:"items"`
	HighConsensus    int             `json:"high_consensus"`
	Disputed         int             `json:"disputed"`
	LowValue         int             `json:"low_value"`
	Blockers         int             `json:"blockers"`
	PercentAgreement float64         `json:"percent_agreement"`
}
