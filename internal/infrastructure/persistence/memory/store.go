package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Store keeps subjects and policies in process memory. It implements the
// subject, record and policy ports and hands out copies only.
type Store struct {
	mu       sync.RWMutex
	subjects map[string]*entity.Subject
	order    []string
	policies map[string]*entity.Policy
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		subjects: make(map[string]*entity.Subject),
		policies: make(map[string]*entity.Policy),
	}
}

// Create stores a copy of a new subject
func (s *Store) Create(ctx context.Context, subject *entity.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[subject.ID]; ok {
		return fmt.Errorf("subject %s already exists: %w", subject.ID, entity.ErrInvalidArgument)
	}
	s.subjects[subject.ID] = subject.Clone()
	s.order = append(s.order, subject.ID)
	return nil
}

// Load returns a copy of a subject
func (s *Store) Load(ctx context.Context, id string) (*entity.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.subjects[id]
	if !ok {
		return nil, fmt.Errorf("subject %s: %w", id, entity.ErrNotFound)
	}
	return cur.Clone(), nil
}

// Save replaces the stored subject if its version still equals expectedVersion
func (s *Store) Save(ctx context.Context, subject *entity.Subject, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.subjects[subject.ID]
	if !ok {
		return fmt.Errorf("subject %s: %w", subject.ID, entity.ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("subject %s at version %d, expected %d: %w",
			subject.ID, cur.Version, expectedVersion, entity.ErrVersionConflict)
	}

	subject.Version = expectedVersion + 1
	s.subjects[subject.ID] = subject.Clone()
	return nil
}

// ListIDs returns subject ids in creation order
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// ListPendingFor returns subjects whose pending record is assigned to approver
func (s *Store) ListPendingFor(ctx context.Context, approver string) ([]*entity.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Subject
	for _, id := range s.order {
		sub := s.subjects[id]
		for _, r := range sub.Approvals {
			if r.Status == entity.RecordStatusPending && r.Approver == approver {
				out = append(out, sub.Clone())
				break
			}
		}
	}
	return out, nil
}

// ListRecords scans every record under one read lock
func (s *Store) ListRecords(ctx context.Context, filter port.RecordFilter) ([]port.RecordView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []port.RecordView
	for _, id := range s.order {
		sub := s.subjects[id]
		if filter.Type != "" && sub.Type != filter.Type {
			continue
		}
		for _, r := range sub.Approvals {
			if filter.PendingOnly && r.Status != entity.RecordStatusPending {
				continue
			}
			placed := sub.CreatedAt
			if r.DecidedAt != nil {
				placed = *r.DecidedAt
			}
			if !filter.From.IsZero() && placed.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && !placed.Before(filter.To) {
				continue
			}

			v := port.RecordView{
				SubjectID:        sub.ID,
				SubjectType:      sub.Type,
				SubjectCreatedAt: sub.CreatedAt,
				Record:           r,
			}
			if r.DecidedAt != nil {
				t := *r.DecidedAt
				v.Record.DecidedAt = &t
			}
			if step, ok := sub.Step(r.Level); ok {
				v.TimeoutHours = step.TimeoutHours
			}
			views = append(views, v)
		}
	}
	return views, nil
}

func (s *Store) createPolicy(policy *entity.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[policy.ID]; ok {
		return fmt.Errorf("policy %s already exists: %w", policy.ID, entity.ErrInvalidArgument)
	}
	s.policies[policy.ID] = clonePolicy(policy)
	return nil
}

func (s *Store) getPolicy(id string) (*entity.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, entity.ErrNotFound)
	}
	return clonePolicy(p), nil
}

func (s *Store) updatePolicy(policy *entity.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.policies[policy.ID]
	if !ok {
		return fmt.Errorf("policy %s: %w", policy.ID, entity.ErrNotFound)
	}
	c := clonePolicy(policy)
	c.CreatedAt = stored.CreatedAt
	s.policies[policy.ID] = c
	return nil
}

func (s *Store) deactivatePolicy(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return fmt.Errorf("policy %s: %w", id, entity.ErrNotFound)
	}
	p.Active = false
	p.UpdatedAt = at
	return nil
}

func clonePolicy(p *entity.Policy) *entity.Policy {
	c := *p
	c.Steps = append([]entity.PolicyStep(nil), p.Steps...)
	c.Departments = append([]string(nil), p.Departments...)
	c.JobLevels = append([]string(nil), p.JobLevels...)
	if p.MaxAmount != nil {
		v := *p.MaxAmount
		c.MaxAmount = &v
	}
	return &c
}

func (s *Store) listPolicies(keep func(*entity.Policy) bool) []*entity.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if keep(p) {
			out = append(out, clonePolicy(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Policies returns the policy view of the store
func (s *Store) Policies() *PolicyStore {
	return &PolicyStore{store: s}
}

// PolicyStore implements port.PolicyRepository over a Store
type PolicyStore struct {
	store *Store
}

// Create stores a copy of a policy
func (p *PolicyStore) Create(ctx context.Context, policy *entity.Policy) error {
	return p.store.createPolicy(policy)
}

// Get returns a copy of one policy
func (p *PolicyStore) Get(ctx context.Context, id string) (*entity.Policy, error) {
	return p.store.getPolicy(id)
}

// Update replaces a policy, keeping its creation time
func (p *PolicyStore) Update(ctx context.Context, policy *entity.Policy) error {
	return p.store.updatePolicy(policy)
}

// Deactivate marks a policy inactive
func (p *PolicyStore) Deactivate(ctx context.Context, id string, at time.Time) error {
	return p.store.deactivatePolicy(id, at)
}

// ListActive returns active policies applying to the type, highest priority first
func (p *PolicyStore) ListActive(ctx context.Context, subjectType entity.SubjectType) ([]*entity.Policy, error) {
	return p.store.listPolicies(func(pol *entity.Policy) bool {
		return pol.Active && pol.AppliesToType(subjectType)
	}), nil
}

// List returns every policy
func (p *PolicyStore) List(ctx context.Context) ([]*entity.Policy, error) {
	return p.store.listPolicies(func(*entity.Policy) bool { return true }), nil
}

var (
	_ port.SubjectRepository = (*Store)(nil)
	_ port.RecordReader      = (*Store)(nil)
	_ port.PolicyRepository  = (*PolicyStore)(nil)
)
