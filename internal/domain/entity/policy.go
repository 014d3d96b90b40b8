package entity

import (
	"fmt"
	"time"
)

// PolicyStep is the template for one level of a chain
type PolicyStep struct {
	Level        int          `json:"level" mapstructure:"level"`
	Name         string       `json:"name" mapstructure:"name"`
	ApproverType ApproverType `json:"approverType" mapstructure:"approver_type"`
	ApproverID   string       `json:"approverId,omitempty" mapstructure:"approver_id"`
	Role         string       `json:"role,omitempty" mapstructure:"role"`
	TimeoutHours int          `json:"timeoutHours" mapstructure:"timeout_hours"`
}

// Policy selects the approval chain for subjects by type, amount, department and job level.
// MaxAmount nil means unbounded. A policy without steps requires no approval.
type Policy struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	AppliesTo   string       `json:"appliesTo"`
	MinAmount   float64      `json:"minAmount"`
	MaxAmount   *float64     `json:"maxAmount,omitempty"`
	Departments []string     `json:"departments,omitempty"`
	JobLevels   []string     `json:"jobLevels,omitempty"`
	Priority    int          `json:"priority"`
	Active      bool         `json:"active"`
	Steps       []PolicyStep `json:"steps"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Validate checks the scope, amount range and step templates.
// Step levels must be distinct and positive; they are renumbered from 1 when a chain is built.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: policy name is required", ErrInvalidArgument)
	}
	if p.AppliesTo != PolicyScopeAll && !SubjectType(p.AppliesTo).IsValid() {
		return fmt.Errorf("%w: policy scope %q", ErrInvalidArgument, p.AppliesTo)
	}
	if p.MinAmount < 0 {
		return fmt.Errorf("%w: minimum amount is negative", ErrInvalidArgument)
	}
	if p.MaxAmount != nil && *p.MaxAmount < p.MinAmount {
		return fmt.Errorf("%w: maximum amount %.2f is below minimum %.2f", ErrInvalidArgument, *p.MaxAmount, p.MinAmount)
	}

	seen := make(map[int]bool, len(p.Steps))
	for _, step := range p.Steps {
		if step.Level < 1 || seen[step.Level] {
			return fmt.Errorf("%w: step level %d is not positive or repeats", ErrInvalidArgument, step.Level)
		}
		seen[step.Level] = true

		if !step.ApproverType.IsValid() {
			return fmt.Errorf("%w: step %d approver type %q", ErrInvalidArgument, step.Level, step.ApproverType)
		}
		if step.ApproverType == ApproverTypeSpecificUser && step.ApproverID == "" {
			return fmt.Errorf("%w: step %d needs an approver id", ErrInvalidArgument, step.Level)
		}
		if step.ApproverType == ApproverTypeRole && step.Role == "" {
			return fmt.Errorf("%w: step %d needs a role", ErrInvalidArgument, step.Level)
		}
		if step.TimeoutHours < 0 {
			return fmt.Errorf("%w: step %d timeout is negative", ErrInvalidArgument, step.Level)
		}
	}
	return nil
}

// AppliesToType reports whether the policy covers the subject type
func (p *Policy) AppliesToType(t SubjectType) bool {
	return p.AppliesTo == PolicyScopeAll || p.AppliesTo == string(t)
}

// ContainsAmount reports whether amount lies in [MinAmount, MaxAmount]
func (p *Policy) ContainsAmount(amount float64) bool {
	if amount < p.MinAmount {
		return false
	}
	return p.MaxAmount == nil || amount <= *p.MaxAmount
}

// AmountRange renders the range ContainsAmount accepts, both bounds inclusive
func (p *Policy) AmountRange() string {
	if p.MaxAmount == nil {
		return fmt.Sprintf("[%.2f, +inf)", p.MinAmount)
	}
	return fmt.Sprintf("[%.2f, %.2f]", p.MinAmount, *p.MaxAmount)
}
