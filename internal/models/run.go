package models

import (
	"fmt"
	"time"
)

// Mode selects the top-level pipeline for a run.
type Mode string

const (
	ModeReview  Mode = "review"
	ModeRedTeam Mode = "red-team"
	ModeInquiry Mode = "inquiry"
)

// ParseMode validates a mode string. Unknown modes fail before any budget
// is spent.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReview, ModeRedTeam, ModeInquiry:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrConfiguration, s)
}

// DocPhase identifies the kind of planning artifact under review.
type DocPhase string

const (
	DocPhasePRD    DocPhase = "prd"
	DocPhaseSDD    DocPhase = "sdd"
	DocPhaseSprint DocPhase = "sprint"
	DocPhaseBeads  DocPhase = "beads"
	DocPhaseSpec   DocPhase = "spec"
)

// ParseDocPhase validates a document phase string.
func ParseDocPhase(s string) (DocPhase, error) {
	switch DocPhase(s) {
	case DocPhasePRD, DocPhaseSDD, DocPhaseSprint, DocPhaseBeads, DocPhaseSpec:
		return DocPhase(s), nil
	}
	return "", fmt.Errorf("%w: unknown document phase %q", ErrConfiguration, s)
}

// Phase is a state of the run controller. Transitions are forward-only.
type Phase string

const (
	PhaseInit      Phase = "INIT"
	PhaseKnowledge Phase = "KNOWLEDGE"
	Phase1         Phase = "PHASE1"
	Phase2         Phase = "PHASE2"
	PhaseConsensus Phase = "CONSENSUS"
	PhaseIntegrate Phase = "INTEGRATE"
	PhaseRedTeam   Phase = "RED_TEAM"
	PhaseInquiry   Phase = "INQUIRY"
	PhaseDone      Phase = "DONE"
	PhaseError     Phase = "ERROR"
)

// phaseOrder positions each phase for the forward-only check. Alternate
// terminal graphs (RED_TEAM, INQUIRY) sit between INIT and DONE.
var phaseOrder = map[Phase]int{
	PhaseInit:      0,
	PhaseKnowledge: 1,
	Phase1:         2,
	Phase2:         3,
	PhaseConsensus: 4,
	PhaseIntegrate: 5,
	PhaseRedTeam:   2,
	PhaseInquiry:   2,
	PhaseDone:      9,
	PhaseError:     9,
}

// RunStatus classifies how a run ended. Values double as process exit codes.
type RunStatus int

const (
	StatusOK              RunStatus = 0
	StatusConfigError     RunStatus = 1
	StatusKnowledgeFailed RunStatus = 2
	StatusAllCallsFailed  RunStatus = 3
	StatusDeadline        RunStatus = 4
	StatusBudgetExceeded  RunStatus = 5
	StatusDegraded        RunStatus = 6
)

func (s RunStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusConfigError:
		return "configuration_error"
	case StatusKnowledgeFailed:
		return "knowledge_failed"
	case StatusAllCallsFailed:
		return "all_calls_failed"
	case StatusDeadline:
		return "deadline_exceeded"
	case StatusBudgetExceeded:
		return "budget_exceeded"
	case StatusDegraded:
		return "degraded"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// RunConfig is the per-run configuration resolved before INIT.
type RunConfig struct {
	Mode    Mode
	DocPath string
	// Domain labels the product area on the report envelope. Supplied by
	// config or flag, never extracted from the document.
	Domain        string
	DocPhase      DocPhase
	Timeout       time.Duration
	BudgetCents   int
	SkipKnowledge bool
	SkipConsensus bool
}

// RunState carries the lifecycle of one run. Created at INIT, discarded
// after the final report is emitted at DONE/ERROR.
type RunState struct {
	ID        string
	Phase     Phase
	StartedAt time.Time
	Config    RunConfig

	KnowledgeContext string
	KnowledgeFailed  bool

	AccumulatedCents  int
	AccumulatedTokens int
}

// Advance moves the run to next, rejecting backward transitions. A single
// caller-initiated re-run of the current phase is the only permitted repeat.
func (r *RunState) Advance(next Phase) error {
	cur, ok := phaseOrder[r.Phase]
	if !ok {
		return fmt.Errorf("unknown phase %q", r.Phase)
	}
	nxt, ok := phaseOrder[next]
	if !ok {
		return fmt.Errorf("unknown phase %q", next)
	}
	if nxt < cur {
		return fmt.Errorf("backward transition %s -> %s", r.Phase, next)
	}
	r.Phase = next
	return nil
}

// Deadline is the single cumulative wall-clock deadline spanning all phases.
func (r *RunState) Deadline() time.Time {
	return r.StartedAt.Add(r.Config.Timeout)
}

// DeadlineExceeded reports whether the cumulative deadline has passed as of
// now. Checked at phase boundaries only, never preemptively mid-call.
func (r *RunState) DeadlineExceeded(now time.Time) bool {
	return r.Config.Timeout > 0 && now.After(r.Deadline())
}
