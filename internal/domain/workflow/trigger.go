package workflow

import "github.com/garyjia/travel-approval/internal/domain/entity"

// Trigger represents an event that causes a state transition
type Trigger string

const (
	TriggerSubmit  Trigger = "submit"
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor maps a decision action to its trigger
func TriggerFor(action entity.Action) (Trigger, bool) {
	switch action {
	case entity.ActionApprove:
		return TriggerApprove, true
	case entity.ActionReject:
		return TriggerReject, true
	default:
		return "", false
	}
}
