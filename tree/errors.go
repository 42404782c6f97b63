package tree

import "fmt"

// Op names a multi-step tree mutation.
type Op string

const (
	OpCreate Op = "create"
	OpMove   Op = "move"
	OpDelete Op = "delete"
)

// Step names one store write inside a multi-step mutation.
type Step string

const (
	StepCreate Step = "create"
	StepLink   Step = "link"
	StepUnlink Step = "unlink"
	StepDelete Step = "delete"
)

// PartialMutationError reports that a later store write of a multi-step
// mutation failed after an earlier one succeeded. The completed steps are
// NOT rolled back: list edits are by-value and idempotent, so retrying the
// same logical operation finishes the job, while a compensating rollback
// could destroy data the user still wants.
type PartialMutationError struct {
	Op        Op
	NodeID    string
	Completed []Step
	Failed    Step
	Err       error
}

func (e *PartialMutationError) Error() string {
	return fmt.Sprintf("%s of node %s partially applied: %v done, %s failed: %v",
		e.Op, e.NodeID, e.Completed, e.Failed, e.Err)
}

func (e *PartialMutationError) Unwrap() error { return e.Err }
