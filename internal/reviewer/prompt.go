package reviewer

import (
	"fmt"
	"strings"

	"github.com/joescharf/tribunal/internal/models"
)

// buildReviewPrompt asks for independent improvement items.
func buildReviewPrompt(doc, knowledge string) (system, user string) {
	system = `You are one of several independent reviewers assessing a planning document (PRD, design doc, or sprint plan). Return ONLY a JSON array of improvement items, each an object with:
- "id": short stable slug for this item (lowercase, hyphenated)
- "description": the specific improvement, 1-3 sentences, actionable

Rules:
- Review independently; do not hedge toward what other reviewers might say
- Each item is one concrete improvement, not a theme
- 3 to 10 items
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if knowledge != "" {
		sb.WriteString("Background context:\n")
		sb.WriteString(knowledge)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Review this document:\n\n")
	sb.WriteString(doc)
	user = sb.String()
	return
}

// buildSkepticPrompt surfaces risks and blockers independent of the main
// review.
func buildSkepticPrompt(doc, knowledge string) (system, user string) {
	system = `You are the skeptic pass of a multi-reviewer assessment. Your only job is surfacing risks and blockers the main reviews will miss. Return ONLY a JSON array of objects with:
- "item_id": the improvement item this concern attaches to, or "" for a document-level concern
- "concern": the risk or blocker, stated plainly

Rules:
- Flag only genuine blockers and material risks, not style preferences
- An empty array is a valid answer
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if knowledge != "" {
		sb.WriteString("Background context:\n")
		sb.WriteString(knowledge)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Find the risks in this document:\n\n")
	sb.WriteString(doc)
	user = sb.String()
	return
}

// buildScorePrompt cross-scores another reviewer's improvement items.
func buildScorePrompt(doc, itemsJSON string) (system, user string) {
	system = `You are cross-scoring improvement items proposed by a different reviewer. Return ONLY a JSON object mapping each item id to an integer score 0-10:
- 0-3: low value or wrong
- 4-6: plausible but disputed
- 7-10: clearly valuable

Rules:
- Score every item you are given, no omissions
- Judge the item on its merits against the document, not its phrasing
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Document under review:\n\n")
	sb.WriteString(doc)
	sb.WriteString("\n\nItems to score:\n\n")
	sb.WriteString(itemsJSON)
	user = sb.String()
	return
}

// buildInquiryPrompt asks one perspective question about the document.
func buildInquiryPrompt(doc, perspective string) (system, user string) {
	angle := map[string]string{
		"structural": "internal structure: completeness, consistency, dependency ordering, and testability of the plan",
		"historical": "precedent: how similar plans have failed before, and which failure modes this one repeats",
		"governance": "ownership and process: decision rights, review gates, and accountability for the plan's commitments",
	}[perspective]
	if angle == "" {
		angle = perspective
	}

	system = fmt.Sprintf(`You are answering one perspective of a three-perspective inquiry into a planning document. Your perspective is %q: %s. Return ONLY a JSON object with:
- "findings": array of strings, each one finding from your perspective
- "summary": 1-2 sentence synthesis of your findings

Rules:
- Stay inside your perspective; the other two are covered separately
- Return valid JSON only, no markdown fencing or explanation`, perspective, angle)

	user = "Examine this document:\n\n" + doc
	return
}

// BuildPrompt composes the system and user prompts for a request. The
// document body and any supporting payload ride in on the request refs.
func BuildPrompt(req models.ReviewRequest, doc string) (system, user string) {
	switch req.Mode {
	case models.ReviewModeSkeptic:
		return buildSkepticPrompt(doc, req.ContextRef)
	case models.ReviewModeScore:
		return buildScorePrompt(doc, req.ContextRef)
	case models.ReviewModeReview:
		if req.Perspective != "" {
			return buildInquiryPrompt(doc, req.Perspective)
		}
		return buildReviewPrompt(doc, req.ContextRef)
	}
	return buildReviewPrompt(doc, req.ContextRef)
}
