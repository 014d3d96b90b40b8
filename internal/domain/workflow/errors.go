package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not allowed in the current state,
	// including decisions against a stale level or a terminal subject
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnauthorizedApprover is returned when the actor is not the assigned approver of the level
	ErrUnauthorizedApprover = errors.New("unauthorized approver")

	// ErrNotOwner is returned when someone other than the owner submits a subject
	ErrNotOwner = errors.New("not the subject owner")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrCorruptChain is returned when a record list cannot be produced by any sequence of transitions
	ErrCorruptChain = errors.New("corrupt approval chain")
)
