// Package reviewer performs bounded calls to LLM-backed reviewer agents.
// Two call paths exist: a structured direct path against the Anthropic API
// and a legacy adapter path that shells out to an agent CLI. Both normalize
// into the same ReviewResult shape, so callers are path-agnostic.
package reviewer

import (
	"context"
	"fmt"

	"github.com/joescharf/tribunal/internal/models"
)

// Request is the canonical prompt sent to any backend.
type Request struct {
	Model  string
	System string
	Prompt string
}

// Response is the canonical result returned from any backend.
type Response struct {
	Content string
	Usage   models.Usage
}

// Backend is one reviewer call path.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// InvalidResponseError marks a provider reply that arrived but was unusable
// (empty content, malformed transport payload).
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid response: %s", e.Reason)
}
