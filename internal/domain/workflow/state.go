package workflow

import "github.com/garyjia/travel-approval/internal/domain/entity"

// State represents a subject's position in the approval lifecycle.
// Pending is parameterized by the active level, which the machine tracks separately.
type State string

const (
	StateDraft    State = "draft"
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

var validStates = map[State]bool{
	StateDraft:    true,
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no further decisions are accepted in this state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// SubjectStatus maps the state onto the persisted subject status
func (s State) SubjectStatus() entity.SubjectStatus {
	return entity.SubjectStatus(s)
}
