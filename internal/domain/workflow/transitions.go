package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// ValidateChain checks that levels are contiguous from 1 and every level has an approver
func ValidateChain(chain []entity.ChainStep) error {
	for i, step := range chain {
		if step.Level != i+1 {
			return fmt.Errorf("%w: chain step %d has level %d", entity.ErrInvalidArgument, i, step.Level)
		}
		if step.Approver == "" {
			return fmt.Errorf("%w: chain level %d has no approver", entity.ErrInvalidArgument, step.Level)
		}
	}
	return nil
}

// Submit freezes the chain on a draft subject and activates level 1.
// An empty chain approves the subject immediately.
func Submit(ctx context.Context, s *entity.Subject, chain []entity.ChainStep, now time.Time) (Projection, error) {
	current, err := ReplaySubject(s)
	if err != nil {
		return Projection{}, err
	}
	if current.Status != StateDraft {
		return Projection{}, fmt.Errorf("%w: subject %s is already %s", ErrInvalidTransition, s.ID, current.Status)
	}
	if err := ValidateChain(chain); err != nil {
		return Projection{}, err
	}

	m := NewChainMachine(len(chain))
	if err := m.Submit(ctx); err != nil {
		return Projection{}, err
	}

	now = now.UTC()
	s.Chain = append([]entity.ChainStep{}, chain...)
	s.Approvals = []entity.ApprovalRecord{}
	s.SubmittedAt = &now
	s.UpdatedAt = now
	if m.State() == StatePending {
		s.Approvals = append(s.Approvals, activate(chain[0], now))
	}
	s.Status = m.State().SubjectStatus()

	return m.Projection(), nil
}

// ActiveRecord returns the pending record for level, failing with ErrInvalidTransition
// when the subject is not pending at exactly that level
func ActiveRecord(s *entity.Subject, level int) (*entity.ApprovalRecord, error) {
	p, err := ReplaySubject(s)
	if err != nil {
		return nil, err
	}
	if p.Status != StatePending {
		return nil, fmt.Errorf("%w: subject %s is %s", ErrInvalidTransition, s.ID, p.Status)
	}
	if level != p.ActiveLevel {
		return nil, fmt.Errorf("%w: level %d is not active on subject %s (active level %d)", ErrInvalidTransition, level, s.ID, p.ActiveLevel)
	}
	return s.Record(level), nil
}

// Decide applies a decision to the active level. It decides the record, creates the
// next record when advancing, and updates the stored status. Authorization is the caller's job.
func Decide(ctx context.Context, s *entity.Subject, d entity.Decision, now time.Time) (Projection, error) {
	trigger, ok := TriggerFor(d.Action)
	if !ok {
		return Projection{}, fmt.Errorf("%w: unknown action %q", entity.ErrInvalidArgument, d.Action)
	}

	m, err := replay(s.Levels(), s.IsSubmitted(), s.Approvals)
	if err != nil {
		return Projection{}, err
	}
	if err := m.Decide(ctx, d.Level, trigger); err != nil {
		return Projection{}, fmt.Errorf("subject %s: %w", s.ID, err)
	}

	now = now.UTC()
	rec := s.Record(d.Level)
	rec.Status = entity.RecordStatusApproved
	if trigger == TriggerReject {
		rec.Status = entity.RecordStatusRejected
	}
	rec.Comments = d.Comments
	rec.DecidedAt = &now

	if m.State() == StatePending {
		step, _ := s.Step(m.Level())
		s.Approvals = append(s.Approvals, activate(step, now))
	}
	s.Status = m.State().SubjectStatus()
	s.UpdatedAt = now

	return m.Projection(), nil
}

func activate(step entity.ChainStep, now time.Time) entity.ApprovalRecord {
	return entity.ApprovalRecord{
		Approver:    step.Approver,
		Level:       step.Level,
		Status:      entity.RecordStatusPending,
		ActivatedAt: now,
	}
}
