package models

import "errors"

// Run-level error taxonomy. Provider-level failures are captured per call as
// an ErrorKind on the ReviewResult and only contribute to quorum accounting;
// these sentinels cover failures that escalate to the run.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrQuorumFailure  = errors.New("quorum failure")
	ErrBudgetExceeded = errors.New("budget exceeded")
	ErrDeadline       = errors.New("deadline exceeded")
)

// ErrorKind classifies a single reviewer-call failure.
type ErrorKind string

const (
	ErrKindNone            ErrorKind = ""
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindProviderError   ErrorKind = "provider_error"
	ErrKindInvalidResponse ErrorKind = "invalid_response"
)
