package entity

import "time"

// ApprovalRecord is the outcome of one level of a subject's approval chain.
// A record is created when its level becomes active and decided at most once.
type ApprovalRecord struct {
	Approver    string       `json:"approver"`
	Level       int          `json:"level"`
	Status      RecordStatus `json:"status"`
	Comments    string       `json:"comments,omitempty"`
	ActivatedAt time.Time    `json:"activatedAt"`
	DecidedAt   *time.Time   `json:"decidedAt,omitempty"`
}

// IsDecided reports whether the record has left pending
func (r ApprovalRecord) IsDecided() bool {
	return r.Status != RecordStatusPending && r.DecidedAt != nil
}

// LatencyHours is the time between activation and decision, in hours.
// Undecided records report zero.
func (r ApprovalRecord) LatencyHours() float64 {
	if r.DecidedAt == nil {
		return 0
	}
	return r.DecidedAt.Sub(r.ActivatedAt).Hours()
}

// ChainStep is one frozen level of a subject's approval chain
type ChainStep struct {
	Level        int    `json:"level"`
	Name         string `json:"name"`
	Approver     string `json:"approver"`
	TimeoutHours int    `json:"timeoutHours"`
}

// Decision is an approver's request to approve or reject one level
type Decision struct {
	SubjectID string `json:"subjectId" validate:"required"`
	ActorID   string `json:"actorId" validate:"required"`
	Level     int    `json:"level" validate:"required,min=1"`
	Action    Action `json:"action" validate:"required,oneof=approve reject"`
	Comments  string `json:"comments,omitempty" validate:"max=2000"`
}
