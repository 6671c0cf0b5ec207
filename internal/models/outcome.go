package models

// PhaseOutcome is the joined result of one scatter-gather phase.
// Invariant: SuccessCount + FailureCount == len(Results) == jobs launched.
type PhaseOutcome struct {
	PhaseName       string
	Results         []ReviewResult
	SuccessCount    int
	FailureCount    int
	RequiredMinimum int
	QuorumMet       bool
}

// Successes returns only the succeeded results, in completion-independent
// launch order.
func (p *PhaseOutcome) Successes() []ReviewResult {
	out := make([]ReviewResult, 0, p.SuccessCount)
	for _, r := range p.Results {
		if r.Succeeded {
			out = append(out, r)
		}
	}
	return out
}

// Degraded reports partial success: quorum met but not every call succeeded.
func (p *PhaseOutcome) Degraded() bool {
	return p.QuorumMet && p.FailureCount > 0
}

// CostCents sums actual cost across all results, including failed calls that
// still consumed tokens.
func (p *PhaseOutcome) CostCents() int {
	total := 0
	for _, r := range p.Results {
		total += r.CostCents
	}
	return total
}

// Tokens sums input+output tokens across all results.
func (p *PhaseOutcome) Tokens() int {
	total := 0
	for _, r := range p.Results {
		total += r.TokensIn + r.TokensOut
	}
	return total
}
