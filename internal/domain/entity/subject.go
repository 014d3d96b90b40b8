package entity

import (
	"time"

	"github.com/google/uuid"
)

// Subject is a travel request or expense claim undergoing approval.
// Status is a projection of Approvals and Chain; Version guards concurrent saves.
type Subject struct {
	ID          string           `json:"id"`
	Type        SubjectType      `json:"type"`
	OwnerID     string           `json:"ownerId"`
	Title       string           `json:"title"`
	Amount      float64          `json:"amount"`
	Department  string           `json:"department,omitempty"`
	JobLevel    string           `json:"jobLevel,omitempty"`
	Status      SubjectStatus    `json:"status"`
	PolicyID    string           `json:"policyId,omitempty"`
	Chain       []ChainStep      `json:"chain"`
	Approvals   []ApprovalRecord `json:"approvals"`
	Version     int64            `json:"version"`
	CreatedAt   time.Time        `json:"createdAt"`
	SubmittedAt *time.Time       `json:"submittedAt,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// NewSubject creates a draft subject with a fresh id
func NewSubject(subjectType SubjectType, ownerID, title string, amount float64, now time.Time) *Subject {
	now = now.UTC()
	return &Subject{
		ID:        uuid.NewString(),
		Type:      subjectType,
		OwnerID:   ownerID,
		Title:     title,
		Amount:    amount,
		Status:    SubjectStatusDraft,
		Chain:     []ChainStep{},
		Approvals: []ApprovalRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Levels returns N, the length of the frozen chain
func (s *Subject) Levels() int {
	return len(s.Chain)
}

// IsSubmitted reports whether the chain has been started
func (s *Subject) IsSubmitted() bool {
	return s.SubmittedAt != nil
}

// Step returns the chain step for a 1-based level
func (s *Subject) Step(level int) (ChainStep, bool) {
	if level < 1 || level > len(s.Chain) {
		return ChainStep{}, false
	}
	return s.Chain[level-1], true
}

// Record returns a pointer to the record for a level, or nil
func (s *Subject) Record(level int) *ApprovalRecord {
	for i := range s.Approvals {
		if s.Approvals[i].Level == level {
			return &s.Approvals[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state
func (s *Subject) Clone() *Subject {
	if s == nil {
		return nil
	}
	c := *s
	c.Chain = append([]ChainStep{}, s.Chain...)
	c.Approvals = make([]ApprovalRecord, len(s.Approvals))
	for i, r := range s.Approvals {
		if r.DecidedAt != nil {
			t := *r.DecidedAt
			r.DecidedAt = &t
		}
		c.Approvals[i] = r
	}
	if s.SubmittedAt != nil {
		t := *s.SubmittedAt
		c.SubmittedAt = &t
	}
	return &c
}
