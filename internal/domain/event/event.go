package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event about one subject
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	SubjectID     string                 `json:"subjectId"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlationId"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, subjectID string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, subjectID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, subjectID string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		SubjectID:     subjectID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// NewSubjectSubmitted announces that a subject entered its chain
func NewSubjectSubmitted(subjectID, ownerID, subjectType, title string, levels int) *Event {
	return NewEvent(TypeSubjectSubmitted, subjectID, map[string]interface{}{
		KeyOwnerID:     ownerID,
		KeySubjectType: subjectType,
		KeyTitle:       title,
		KeyLevels:      levels,
	})
}

// NewApprovalAdvanced tells the approver of newLevel that a decision is waiting
func NewApprovalAdvanced(subjectID string, newLevel int, assignedApprover, correlationID string) *Event {
	return NewEventWithCorrelation(TypeApprovalAdvanced, subjectID, map[string]interface{}{
		KeyNewLevel:         newLevel,
		KeyAssignedApprover: assignedApprover,
	}, correlationID)
}

// NewApprovalTerminal tells the owner the subject reached approved or rejected
func NewApprovalTerminal(subjectID, outcome, ownerID, correlationID string) *Event {
	return NewEventWithCorrelation(TypeApprovalTerminal, subjectID, map[string]interface{}{
		KeyOutcome: outcome,
		KeyOwnerID: ownerID,
	}, correlationID)
}

// NewApprovalOverdue reminds an approver that a pending level passed its timeout
func NewApprovalOverdue(subjectID string, level int, approver string, overdueHours float64) *Event {
	return NewEvent(TypeApprovalOverdue, subjectID, map[string]interface{}{
		KeyLevel:        level,
		KeyApprover:     approver,
		KeyOverdueHours: overdueHours,
	})
}

// WithPayload returns a copy of the event with one more payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	c := *e
	c.Payload = payload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload.
// JSON round-trips turn numbers into float64, so that is accepted too.
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}
