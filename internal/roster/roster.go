// Package roster loads the reviewer roster: which reviewer agents exist,
// which call path each one uses, and how its token usage is priced.
package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/tribunal/internal/models"
)

// BackendKind selects the call path for a reviewer. Both paths normalize
// into the same ReviewResult shape, so callers are path-agnostic.
type BackendKind string

const (
	// BackendDirect uses the structured Anthropic API path.
	BackendDirect BackendKind = "direct"
	// BackendLegacy shells out to an external agent CLI.
	BackendLegacy BackendKind = "legacy"
)

// Reviewer describes one configured reviewer agent.
type Reviewer struct {
	ID      string      `yaml:"id"`
	Backend BackendKind `yaml:"backend"`
	Model   string      `yaml:"model,omitempty"`
	// Command is the argv for legacy reviewers. The prompt is appended as
	// the final argument.
	Command []string `yaml:"command,omitempty"`
	// Token pricing, integer cents per million tokens.
	InputCentsPerMTok  int `yaml:"input_cents_per_mtok"`
	OutputCentsPerMTok int `yaml:"output_cents_per_mtok"`
	// Tertiary reviewers participate only when the triangular quorum is
	// enabled.
	Tertiary bool `yaml:"tertiary,omitempty"`
}

// CostCents prices a call's usage in integer cents, rounding up so the
// ledger never undercounts.
func (r Reviewer) CostCents(u models.Usage) int {
	in := ceilDiv(u.InputTokens*r.InputCentsPerMTok, 1_000_000)
	out := ceilDiv(u.OutputTokens*r.OutputCentsPerMTok, 1_000_000)
	return in + out
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Roster is the full set of configured reviewers.
type Roster struct {
	Reviewers []Reviewer `yaml:"reviewers"`
}

// Load reads and validates a roster file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Default returns the built-in two-reviewer roster plus a tertiary, used
// when no roster file is configured.
func Default() *Roster {
	return &Roster{
		Reviewers: []Reviewer{
			{
				ID:                 "claude",
				Backend:            BackendDirect,
				Model:              "claude-sonnet-4-5",
				InputCentsPerMTok:  300,
				OutputCentsPerMTok: 1500,
			},
			{
				ID:                 "codex",
				Backend:            BackendLegacy,
				Command:            []string{"codex", "exec", "--json"},
				InputCentsPerMTok:  200,
				OutputCentsPerMTok: 800,
			},
			{
				ID:                 "gemini",
				Backend:            BackendLegacy,
				Command:            []string{"gemini", "--output-format", "json", "-p"},
				InputCentsPerMTok:  125,
				OutputCentsPerMTok: 1000,
				Tertiary:           true,
			},
		},
	}
}

// Validate checks roster invariants: unique ids, a known backend per
// reviewer, and a command for every legacy reviewer.
func (r *Roster) Validate() error {
	if len(r.Reviewers) == 0 {
		return fmt.Errorf("%w: roster has no reviewers", models.ErrConfiguration)
	}
	seen := make(map[string]bool, len(r.Reviewers))
	for _, rev := range r.Reviewers {
		if rev.ID == "" {
			return fmt.Errorf("%w: reviewer with empty id", models.ErrConfiguration)
		}
		if seen[rev.ID] {
			return fmt.Errorf("%w: duplicate reviewer id %q", models.ErrConfiguration, rev.ID)
		}
		seen[rev.ID] = true

		switch rev.Backend {
		case BackendDirect:
			if rev.Model == "" {
				return fmt.Errorf("%w: reviewer %q: direct backend requires a model", models.ErrConfiguration, rev.ID)
			}
		case BackendLegacy:
			if len(rev.Command) == 0 {
				return fmt.Errorf("%w: reviewer %q: legacy backend requires a command", models.ErrConfiguration, rev.ID)
			}
		default:
			return fmt.Errorf("%w: reviewer %q: unknown backend %q", models.ErrConfiguration, rev.ID, rev.Backend)
		}
	}
	return nil
}

// Get returns the reviewer with the given id. Missing ids are an explicit
// error, never a silent fallthrough.
func (r *Roster) Get(id string) (Reviewer, error) {
	for _, rev := range r.Reviewers {
		if rev.ID == id {
			return rev, nil
		}
	}
	return Reviewer{}, fmt.Errorf("%w: unknown reviewer id %q", models.ErrConfiguration, id)
}

// Active returns the reviewers participating in a run. Tertiary reviewers
// are included only when requested.
func (r *Roster) Active(includeTertiary bool) []Reviewer {
	out := make([]Reviewer, 0, len(r.Reviewers))
	for _, rev := range r.Reviewers {
		if rev.Tertiary && !includeTertiary {
			continue
		}
		out = append(out, rev)
	}
	return out
}
