// Package consensus merges independent reviews, cross-scores, and skeptic
// findings into one classified, ranked output. The numeric scoring formula
// is delegated to a ScoringBackend; this package owns the merge and
// classification contract.
package consensus

import (
	"context"
	"fmt"
	"sort"

	"github.com/joescharf/tribunal/internal/models"
)

// DefaultThreshold is the cross-score acceptance threshold on the 0-10
// scale.
const DefaultThreshold = 7

// Input carries the artifacts of PHASE1 and PHASE2 into aggregation.
type Input struct {
	Items []models.ImprovementItem
	// CrossScores maps scoring reviewer -> item id -> score (0-10).
	CrossScores map[string]map[string]int
	SkepticFlags []models.SkepticFlag
}

// ScoreSummary is the numeric summary returned by the external scoring
// collaborator.
type ScoreSummary struct {
	MeanByItem map[string]float64 `json:"mean_by_item"`
}

// ScoringBackend computes the numeric score summary. The CONSENSUS phase
// calls this backend and merges its output; it does not reimplement the
// formula.
type ScoringBackend interface {
	Summarize(ctx context.Context, in Input) (*ScoreSummary, error)
}

// LocalScoring is the built-in deterministic backend: per-item mean of
// cross-scores. Used for tests and offline runs.
type LocalScoring struct{}

// Summarize computes the per-item mean cross-score.
func (LocalScoring) Summarize(_ context.Context, in Input) (*ScoreSummary, error) {
	means := make(map[string]float64, len(in.Items))
	for _, item := range in.Items {
		sum, n := 0, 0
		for scorer, scores := range in.CrossScores {
			if scorer == item.Reviewer {
				continue
			}
			if s, ok := scores[item.ID]; ok {
				sum += s
				n++
			}
		}
		if n > 0 {
			means[item.ID] = float64(sum) / float64(n)
		}
	}
	return &ScoreSummary{MeanByItem: means}, nil
}

// Aggregator classifies and ranks improvement items.
type Aggregator struct {
	backend   ScoringBackend
	threshold int
}

// New creates an aggregator. threshold < 1 falls back to DefaultThreshold.
func New(backend ScoringBackend, threshold int) *Aggregator {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	if backend == nil {
		backend = LocalScoring{}
	}
	return &Aggregator{backend: backend, threshold: threshold}
}

// Aggregate produces the classified, ranked consensus summary. Identical
// inputs always yield identical output.
func (a *Aggregator) Aggregate(ctx context.Context, in Input) (*models.ConsensusSummary, error) {
	scores, err := a.backend.Summarize(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("scoring backend: %w", err)
	}

	flagsByItem := make(map[string][]models.SkepticFlag)
	for _, f := range in.SkepticFlags {
		flagsByItem[f.ItemID] = append(flagsByItem[f.ItemID], f)
	}

	summary := &models.ConsensusSummary{}
	for _, item := range in.Items {
		ci := models.ConsensusItem{
			ItemID:           item.ID,
			SourceReviewer:   item.Reviewer,
			Description:      item.Description,
			ScoresByReviewer: map[string]int{},
			SkepticFlags:     flagsByItem[item.ID],
		}

		favorable, unfavorable := 0, 0
		for scorer, scored := range in.CrossScores {
			if scorer == item.Reviewer {
				continue
			}
			s, ok := scored[item.ID]
			if !ok {
				continue
			}
			ci.ScoresByReviewer[scorer] = s
			if s >= a.threshold {
				favorable++
			} else {
				unfavorable++
			}
		}

		ci.Classification = classify(len(ci.SkepticFlags) > 0, favorable, unfavorable)
		summary.Items = append(summary.Items, ci)

		switch ci.Classification {
		case models.ClassBlocker:
			summary.Blockers++
		case models.ClassHighConsensus:
			summary.HighConsensus++
		case models.ClassDisputed:
			summary.Disputed++
		case models.ClassLowValue:
			summary.LowValue++
		}
	}

	if n := len(summary.Items); n > 0 {
		summary.PercentAgreement = 100 * float64(summary.HighConsensus) / float64(n)
	}

	rank(summary.Items, scores.MeanByItem)
	return summary, nil
}

// classify applies the classification contract. Skeptic flags override any
// score-based label; ties resolve to disputed, never upgraded to consensus.
func classify(flagged bool, favorable, unfavorable int) models.Classification {
	if flagged {
		return models.ClassBlocker
	}
	total := favorable + unfavorable
	switch {
	case total == 0:
		return models.ClassDisputed
	case favorable == total:
		return models.ClassHighConsensus
	case unfavorable > favorable:
		return models.ClassLowValue
	default:
		return models.ClassDisputed
	}
}

// classRank orders classifications for the ranked output.
var classRank = map[models.Classification]int{
	models.ClassBlocker:       0,
	models.ClassHighConsensus: 1,
	models.ClassDisputed:      2,
	models.ClassLowValue:      3,
}

// rank sorts items by class, then by the backend's mean score descending,
// then by item id for a stable, deterministic order.
func rank(items []models.ConsensusItem, means map[string]float64) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if classRank[a.Classification] != classRank[b.Classification] {
			return classRank[a.Classification] < classRank[b.Classification]
		}
		if means[a.ItemID] != means[b.ItemID] {
			return means[a.ItemID] > means[b.ItemID]
		}
		return a.ItemID < b.ItemID
	})
}
