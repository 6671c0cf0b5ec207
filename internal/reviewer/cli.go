package reviewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/joescharf/tribunal/internal/models"
)

// CLIBackend is the legacy adapter path: it runs an external agent command
// and treats stdout as the reviewer's response.
type CLIBackend struct {
	// Argv is the base command; the composed prompt is appended as the
	// final argument.
	Argv []string
}

// NewCLIBackend creates a legacy backend for the given argv.
func NewCLIBackend(argv []string) *CLIBackend {
	return &CLIBackend{Argv: argv}
}

// Complete runs the command under ctx. The system prompt and user prompt are
// joined, since legacy CLIs take a single prompt argument.
func (b *CLIBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(b.Argv) == 0 {
		return nil, fmt.Errorf("legacy backend has no command")
	}

	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	args := append(append([]string{}, b.Argv[1:]...), prompt)
	cmd := exec.CommandContext(ctx, b.Argv[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		// Timeout kills the process; report it as the context error so
		// the invoker classifies it as a timeout, not a provider error.
		return nil, ctx.Err()
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("agent command exited %d: %s", exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("agent command: %s", msg)
	}

	content := strings.TrimSpace(stdout.String())
	if content == "" {
		return nil, &InvalidResponseError{Reason: "empty stdout from agent command"}
	}

	return &Response{
		Content: content,
		Usage:   estimateUsage(prompt, content),
	}, nil
}

// estimateUsage approximates token counts for CLIs that report none.
// Four bytes per token is the usual rough cut.
func estimateUsage(prompt, content string) models.Usage {
	return models.Usage{
		InputTokens:  len(prompt) / 4,
		OutputTokens: len(content) / 4,
	}
}
