package sim

import "fmt"

// ValidationError reports a malformed scenario: a bad chain DAG, a
// non-positive capacity, a negative demand, a non-finite rate. It is always
// surfaced before any event is scheduled; the run refuses to start.
//
// Scheduling problems are deliberately a different type
// (placement.SchedulingFailure): there the chain shape is fine and the
// topology plus demand is the cause.
type ValidationError struct {
	Where string // the scenario element at fault, e.g. "chain checkout"
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid scenario (%s): %v", e.Where, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
