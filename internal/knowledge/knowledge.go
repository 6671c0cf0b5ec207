// Package knowledge is the boundary to the knowledge-retrieval
// collaborator. The KNOWLEDGE phase asks it for background context on the
// document; failure is non-fatal and the phase is skippable by flag.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joescharf/tribunal/internal/models"
)

// Retriever fetches background context for a document under review.
type Retriever interface {
	Retrieve(ctx context.Context, docPath string, phase models.DocPhase) (string, error)
}

// FileRetriever reads per-phase notes from a directory: <dir>/<phase>.md
// plus an optional <dir>/common.md. Missing files are not an error; a
// missing directory is.
type FileRetriever struct {
	Dir string
}

// Retrieve concatenates the phase notes and common notes.
func (r FileRetriever) Retrieve(_ context.Context, _ string, phase models.DocPhase) (string, error) {
	if r.Dir == "" {
		return "", nil
	}
	if _, err := os.Stat(r.Dir); err != nil {
		return "", fmt.Errorf("knowledge dir: %w", err)
	}

	var parts []string
	for _, name := range []string{string(phase) + ".md", "common.md"} {
		data, err := os.ReadFile(filepath.Join(r.Dir, name))
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// Noop returns no context and never fails. Used when retrieval is skipped.
type Noop struct{}

// Retrieve returns empty context.
func (Noop) Retrieve(context.Context, string, models.DocPhase) (string, error) {
	return "", nil
}
