package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Projection is the status derived from a subject's record list
type Projection struct {
	Status      State `json:"status"`
	ActiveLevel int   `json:"activeLevel"`
}

// IsTerminal reports whether the projection is approved or rejected
func (p Projection) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// Replay derives the projection by feeding the ordered records through the chain machine.
// It is the only place status is computed; stored status must always equal its result.
func Replay(levels int, submitted bool, records []entity.ApprovalRecord) (Projection, error) {
	m, err := replay(levels, submitted, records)
	if err != nil {
		return Projection{}, err
	}
	return m.Projection(), nil
}

// ReplaySubject replays a subject's own chain and records
func ReplaySubject(s *entity.Subject) (Projection, error) {
	return Replay(s.Levels(), s.IsSubmitted(), s.Approvals)
}

// Verify replays the subject and checks the stored status against the projection
func Verify(s *entity.Subject) (Projection, error) {
	p, err := ReplaySubject(s)
	if err != nil {
		return Projection{}, err
	}
	if p.Status.SubjectStatus() != s.Status {
		return p, fmt.Errorf("%w: stored status %s, replayed %s", ErrCorruptChain, s.Status, p.Status)
	}
	return p, nil
}

func replay(levels int, submitted bool, records []entity.ApprovalRecord) (*ChainMachine, error) {
	m := NewChainMachine(levels)
	if !submitted {
		if len(records) > 0 {
			return nil, fmt.Errorf("%w: draft subject has %d records", ErrCorruptChain, len(records))
		}
		return m, nil
	}

	ctx := context.Background()
	if err := m.Submit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptChain, err)
	}

	for i, rec := range records {
		if m.State() != StatePending {
			return nil, fmt.Errorf("%w: record for level %d after %s", ErrCorruptChain, rec.Level, m.State())
		}
		if rec.Level != m.Level() {
			return nil, fmt.Errorf("%w: record %d has level %d, expected %d", ErrCorruptChain, i, rec.Level, m.Level())
		}

		switch rec.Status {
		case entity.RecordStatusPending:
			if i != len(records)-1 {
				return nil, fmt.Errorf("%w: pending record at level %d is followed by more records", ErrCorruptChain, rec.Level)
			}
			continue
		case entity.RecordStatusApproved, entity.RecordStatusRejected:
			if rec.DecidedAt == nil {
				return nil, fmt.Errorf("%w: level %d is %s without a decision time", ErrCorruptChain, rec.Level, rec.Status)
			}
		default:
			return nil, fmt.Errorf("%w: level %d has status %q", ErrCorruptChain, rec.Level, rec.Status)
		}

		trigger := TriggerApprove
		if rec.Status == entity.RecordStatusRejected {
			trigger = TriggerReject
		}
		if err := m.Decide(ctx, rec.Level, trigger); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptChain, err)
		}
	}

	if m.State() == StatePending {
		n := len(records)
		if n == 0 || records[n-1].Level != m.Level() || records[n-1].Status != entity.RecordStatusPending {
			return nil, fmt.Errorf("%w: active level %d has no pending record", ErrCorruptChain, m.Level())
		}
	}

	return m, nil
}
