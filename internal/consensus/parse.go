package consensus

import (
	"encoding/json"
	"fmt"

	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/normalize"
)

// ParseItems extracts improvement items from succeeded review results.
// Item ids are namespaced by reviewer so two reviewers proposing the same
// slug never collide; malformed responses contribute no items and a
// warning, never an error.
func ParseItems(results []models.ReviewResult) ([]models.ImprovementItem, []string) {
	var items []models.ImprovementItem
	var warnings []string

	for _, r := range results {
		if !r.Succeeded {
			continue
		}
		res := normalize.JSON(r.Content, json.RawMessage(`[]`), &normalize.Hint{Kind: normalize.KindArray})
		if res.Fallback {
			warnings = append(warnings, fmt.Sprintf("reviewer %s: unparseable review response", r.ReviewerID))
			continue
		}

		var raw []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(res.Value, &raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("reviewer %s: review items not an array of objects", r.ReviewerID))
			continue
		}
		for i, it := range raw {
			id := it.ID
			if id == "" {
				id = fmt.Sprintf("item-%d", i+1)
			}
			items = append(items, models.ImprovementItem{
				ID:          r.ReviewerID + ":" + id,
				Reviewer:    r.ReviewerID,
				Description: it.Description,
			})
		}
	}
	return items, warnings
}

// ParseScores extracts cross-scores from succeeded score results, keyed by
// scoring reviewer.
func ParseScores(results []models.ReviewResult) (map[string]map[string]int, []string) {
	scores := make(map[string]map[string]int)
	var warnings []string

	for _, r := range results {
		if !r.Succeeded {
			continue
		}
		res := normalize.JSON(r.Content, json.RawMessage(`{}`), &normalize.Hint{Kind: normalize.KindObject})
		if res.Fallback {
			warnings = append(warnings, fmt.Sprintf("reviewer %s: unparseable score response", r.ReviewerID))
			continue
		}

		var raw map[string]float64
		if err := json.Unmarshal(res.Value, &raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("reviewer %s: scores not a map of numbers", r.ReviewerID))
			continue
		}
		m := make(map[string]int, len(raw))
		for id, v := range raw {
			s := int(v)
			if s < 0 {
				s = 0
			}
			if s > 10 {
				s = 10
			}
			m[id] = s
		}
		if existing, ok := scores[r.ReviewerID]; ok {
			// One reviewer may score several other reviewers' item sets.
			for id, s := range m {
				existing[id] = s
			}
		} else {
			scores[r.ReviewerID] = m
		}
	}
	return scores, warnings
}

// ParseSkepticFlags extracts concerns from succeeded skeptic results.
func ParseSkepticFlags(results []models.ReviewResult) ([]models.SkepticFlag, []string) {
	var flags []models.SkepticFlag
	var warnings []string

	for _, r := range results {
		if !r.Succeeded {
			continue
		}
		res := normalize.JSON(r.Content, json.RawMessage(`[]`), &normalize.Hint{Kind: normalize.KindArray})
		if res.Fallback {
			warnings = append(warnings, fmt.Sprintf("reviewer %s: unparseable skeptic response", r.ReviewerID))
			continue
		}

		var raw []struct {
			ItemID  string `json:"item_id"`
			Concern string `json:"concern"`
		}
		if err := json.Unmarshal(res.Value, &raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("reviewer %s: skeptic flags not an array of objects", r.ReviewerID))
			continue
		}
		for _, f := range raw {
			flags = append(flags, models.SkepticFlag{
				Reviewer: r.ReviewerID,
				ItemID:   f.ItemID,
				Concern:  f.Concern,
			})
		}
	}
	return flags, warnings
}

// ItemsJSON renders items for a cross-scoring prompt.
func ItemsJSON(items []models.ImprovementItem) string {
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}
