package event

// Type identifies the type of domain event
type Type string

const (
	TypeSubjectSubmitted Type = "approval.submitted"
	TypeApprovalAdvanced Type = "approval.advanced"
	TypeApprovalTerminal Type = "approval.terminal"
	TypeApprovalOverdue  Type = "approval.overdue"
)

// Payload keys
const (
	KeyOwnerID          = "ownerId"
	KeySubjectType      = "subjectType"
	KeyTitle            = "title"
	KeyLevels           = "levels"
	KeyNewLevel         = "newLevel"
	KeyAssignedApprover = "assignedApprover"
	KeyOutcome          = "outcome"
	KeyLevel            = "level"
	KeyApprover         = "approver"
	KeyOverdueHours     = "overdueHours"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeSubjectSubmitted,
		TypeApprovalAdvanced,
		TypeApprovalTerminal,
		TypeApprovalOverdue:
		return true
	default:
		return false
	}
}
