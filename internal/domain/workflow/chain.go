package workflow

import (
	"context"
	"fmt"
)

// ChainMachine drives one subject through a chain of a fixed number of levels.
// It wraps the generic state machine and tracks the active pending level.
type ChainMachine struct {
	machine StateMachine
	levels  int
	level   int
}

// NewChainMachine builds a machine in draft for a chain of the given length
func NewChainMachine(levels int) *ChainMachine {
	c := &ChainMachine{levels: levels}

	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerSubmit, StatePending, c.hasLevels).
		PermitIf(TriggerSubmit, StateApproved, c.noLevels)
	builder.Configure(StatePending).
		PermitIf(TriggerApprove, StatePending, c.hasNextLevel).
		PermitIf(TriggerApprove, StateApproved, c.atLastLevel).
		Permit(TriggerReject, StateRejected)
	builder.OnTransition(c.advance)

	c.machine = builder.Build(StateDraft)
	return c
}

// State returns the current state
func (c *ChainMachine) State() State {
	return c.machine.State()
}

// Level returns the active level, or 0 when not pending
func (c *ChainMachine) Level() int {
	if c.machine.State() != StatePending {
		return 0
	}
	return c.level
}

// Projection returns the current status and active level
func (c *ChainMachine) Projection() Projection {
	return Projection{Status: c.State(), ActiveLevel: c.Level()}
}

// Submit fires the submit trigger
func (c *ChainMachine) Submit(ctx context.Context) error {
	return c.machine.Fire(ctx, TriggerSubmit)
}

// Decide fires a decision trigger against a specific level
func (c *ChainMachine) Decide(ctx context.Context, level int, trigger Trigger) error {
	if trigger != TriggerApprove && trigger != TriggerReject {
		return fmt.Errorf("%w: %s is not a decision", ErrInvalidTransition, trigger)
	}
	if c.State() != StatePending {
		return fmt.Errorf("%w: cannot %s from state %s", ErrInvalidTransition, trigger, c.State())
	}
	if level != c.level {
		return fmt.Errorf("%w: level %d is not active (active level %d)", ErrInvalidTransition, level, c.level)
	}
	return c.machine.Fire(ctx, trigger)
}

func (c *ChainMachine) hasLevels(context.Context) bool    { return c.levels > 0 }
func (c *ChainMachine) noLevels(context.Context) bool     { return c.levels == 0 }
func (c *ChainMachine) hasNextLevel(context.Context) bool { return c.level < c.levels }
func (c *ChainMachine) atLastLevel(context.Context) bool  { return c.level == c.levels }

func (c *ChainMachine) advance(_, to State, _ Trigger) {
	if to == StatePending {
		c.level++
	}
}
