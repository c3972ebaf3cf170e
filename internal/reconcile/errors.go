package reconcile

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check.
var (
	// ErrCatalogQuery marks a lookup that failed at the transport, auth, or
	// schema level. It is never used for "not found".
	ErrCatalogQuery = errors.New("reconcile: catalog query failed")

	// ErrPrecondition marks a later phase finding an identifier that an
	// earlier phase should have produced.
	ErrPrecondition = errors.New("reconcile: precondition failed")

	// ErrMissingSecret marks a credential response that carried no secret.
	ErrMissingSecret = errors.New("reconcile: credential response carried no secret")
)

// Phase names one stage of a reconciliation run.
type Phase string

// Run phases, in execution order.
const (
	PhaseValidate Phase = "validate"
	PhaseBuckets  Phase = "buckets"
	PhaseTasks    Phase = "tasks"
	PhaseTokens   Phase = "tokens"
)

// PhaseError reports which phase of a run failed and on what.
type PhaseError struct {
	Phase Phase
	Op    string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("reconcile: %s phase failed: %s: %v", e.Phase, e.Op, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
