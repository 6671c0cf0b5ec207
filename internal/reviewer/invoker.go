package reviewer

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/tribunal/internal/capture"
	"github.com/joescharf/tribunal/internal/models"
	"github.com/joescharf/tribunal/internal/redact"
	"github.com/joescharf/tribunal/internal/roster"
)

// BackendFactory resolves the call path for a reviewer. Tests substitute
// fakes here.
type BackendFactory func(rev roster.Reviewer) Backend

// Invoker performs one bounded reviewer call per request. It enforces the
// per-call timeout, records latency even on failure, prices usage, and
// persists a diagnostic capture of the raw response or error.
type Invoker struct {
	roster   *roster.Roster
	factory  BackendFactory
	captures *capture.Writer
	doc      string
}

// NewInvoker creates an invoker for one run's document. The direct backend
// is shared across direct-path reviewers; legacy reviewers each get a CLI
// backend built from their configured argv.
func NewInvoker(r *roster.Roster, direct Backend, captures *capture.Writer, doc string) *Invoker {
	return &Invoker{
		roster: r,
		factory: func(rev roster.Reviewer) Backend {
			if rev.Backend == roster.BackendLegacy {
				return NewCLIBackend(rev.Command)
			}
			return direct
		},
		captures: captures,
		doc:      doc,
	}
}

// WithFactory overrides backend resolution.
func (i *Invoker) WithFactory(f BackendFactory) *Invoker {
	i.factory = f
	return i
}

// Invoke performs the call described by req. It never returns an error:
// failures are classified onto the ReviewResult and contribute to quorum
// accounting only.
func (i *Invoker) Invoke(ctx context.Context, req models.ReviewRequest) models.ReviewResult {
	result := models.ReviewResult{
		ReviewerID:  req.ReviewerID,
		Mode:        req.Mode,
		Perspective: req.Perspective,
	}

	rev, err := i.roster.Get(req.ReviewerID)
	if err != nil {
		result.ErrorKind = models.ErrKindProviderError
		result.Error = redact.Error(err)
		return result
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	system, user := BuildPrompt(req, i.doc)

	start := time.Now()
	resp, err := i.factory(rev).Complete(ctx, Request{
		Model:  rev.Model,
		System: system,
		Prompt: user,
	})
	result.Latency = time.Since(start)

	rec := capture.Record{
		RunID:      req.RunID,
		ReviewerID: req.ReviewerID,
		Mode:       string(req.Mode),
		Latency:    result.Latency,
	}

	if err != nil {
		result.ErrorKind = classify(ctx, err)
		result.Error = redact.Error(err)
		rec.Err = err.Error()
		result.CapturePath, _ = i.captures.Write(rec)
		return result
	}

	result.Succeeded = true
	result.Content = resp.Content
	result.TokensIn = resp.Usage.InputTokens
	result.TokensOut = resp.Usage.OutputTokens
	result.CostCents = rev.CostCents(resp.Usage)

	rec.Raw = resp.Content
	result.CapturePath, _ = i.captures.Write(rec)
	return result
}

// classify maps a call failure onto the error taxonomy.
func classify(ctx context.Context, err error) models.ErrorKind {
	var invalid *InvalidResponseError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.ErrKindTimeout
	case errors.As(err, &invalid):
		return models.ErrKindInvalidResponse
	default:
		return models.ErrKindProviderError
	}
}
