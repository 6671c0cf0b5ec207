package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandPipeline runs the adversarial pass by shelling out to a configured
// external command. The request is written to stdin as JSON; stdout must be
// a JSON object with report, cost_cents, and tokens fields.
type CommandPipeline struct {
	Argv []string
}

// NewCommandPipeline creates a pipeline over the given argv.
func NewCommandPipeline(argv []string) *CommandPipeline {
	return &CommandPipeline{Argv: argv}
}

type commandRequest struct {
	Document string `json:"document"`
	Phase    string `json:"phase"`
	Depth    string `json:"depth"`
	Context  string `json:"context,omitempty"`
}

type commandResponse struct {
	Report    json.RawMessage `json:"report"`
	CostCents int             `json:"cost_cents"`
	Tokens    int             `json:"tokens"`
}

// Run executes the command under ctx and decodes its response.
func (p *CommandPipeline) Run(ctx context.Context, req RedTeamRequest) (*RedTeamResult, error) {
	if len(p.Argv) == 0 {
		return nil, fmt.Errorf("adversarial pipeline has no command")
	}

	input, err := json.Marshal(commandRequest{
		Document: req.Document,
		Phase:    string(req.Phase),
		Depth:    req.Depth,
		Context:  req.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("encode pipeline request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Argv[0], p.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctx.Err() != nil {
		// Deadline kills the process; report the context error so the
		// caller sees a timeout, not an exit code.
		return nil, ctx.Err()
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("pipeline command exited %d: %s", exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("pipeline command: %s", msg)
	}

	var resp commandResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode pipeline response: %w", err)
	}
	if len(resp.Report) == 0 {
		return nil, fmt.Errorf("pipeline response has no report")
	}

	return &RedTeamResult{
		Report:    resp.Report,
		CostCents: resp.CostCents,
		Tokens:    resp.Tokens,
	}, nil
}
