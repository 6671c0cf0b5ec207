// Package capture persists size-capped, secret-redacted diagnostic captures
// of raw reviewer responses and errors for post-mortem analysis.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joescharf/tribunal/internal/redact"
)

// DefaultMaxBytes caps a single capture file.
const DefaultMaxBytes = 64 * 1024

// Writer writes one capture file per reviewer call. File names carry a
// per-writer sequence number, so concurrent calls for the same reviewer and
// mode never contend on the same file.
type Writer struct {
	Dir      string
	MaxBytes int

	seq atomic.Int64
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, MaxBytes: DefaultMaxBytes}
}

// Record is the raw material captured for one call.
type Record struct {
	RunID      string
	ReviewerID string
	Mode       string
	Raw        string
	Err        string
	Latency    time.Duration
}

// Write persists a capture and returns its path. Write failures are returned
// to the caller but must never fail the reviewer call itself.
func (w *Writer) Write(rec Record) (string, error) {
	if w == nil || w.Dir == "" {
		return "", nil
	}

	dir := filepath.Join(w.Dir, sanitize(rec.RunID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%03d.txt", sanitize(rec.ReviewerID), sanitize(rec.Mode), w.seq.Add(1))
	path := filepath.Join(dir, name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "run: %s\nreviewer: %s\nmode: %s\nlatency_ms: %d\ncaptured_at: %s\n",
		rec.RunID, rec.ReviewerID, rec.Mode, rec.Latency.Milliseconds(),
		time.Now().UTC().Format(time.RFC3339))
	if rec.Err != "" {
		fmt.Fprintf(&sb, "error: %s\n", redact.String(rec.Err))
	}
	sb.WriteString("---\n")
	sb.WriteString(redact.String(rec.Raw))

	body := sb.String()
	max := w.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	if len(body) > max {
		body = body[:max] + "\n[truncated]"
	}

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	return path, nil
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '_'
	}, s)
}
