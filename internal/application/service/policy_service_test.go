package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

type mockPolicyRepo struct {
	policies map[string]*entity.Policy
	listErr  error
}

func newMockPolicyRepo(policies ...*entity.Policy) *mockPolicyRepo {
	m := &mockPolicyRepo{policies: map[string]*entity.Policy{}}
	for _, p := range policies {
		c := *p
		m.policies[p.ID] = &c
	}
	return m
}

func (m *mockPolicyRepo) Create(ctx context.Context, p *entity.Policy) error {
	c := *p
	m.policies[p.ID] = &c
	return nil
}

func (m *mockPolicyRepo) Get(ctx context.Context, id string) (*entity.Policy, error) {
	p, ok := m.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, entity.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (m *mockPolicyRepo) Update(ctx context.Context, p *entity.Policy) error {
	if _, ok := m.policies[p.ID]; !ok {
		return entity.ErrNotFound
	}
	c := *p
	m.policies[p.ID] = &c
	return nil
}

func (m *mockPolicyRepo) Deactivate(ctx context.Context, id string, at time.Time) error {
	p, ok := m.policies[id]
	if !ok {
		return entity.ErrNotFound
	}
	p.Active = false
	p.UpdatedAt = at
	return nil
}

func (m *mockPolicyRepo) ListActive(ctx context.Context, t entity.SubjectType) ([]*entity.Policy, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*entity.Policy
	for _, p := range all {
		if p.Active && p.AppliesToType(t) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPolicyRepo) List(ctx context.Context) ([]*entity.Policy, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*entity.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

type mapResolver map[entity.ApproverType]string

func (r mapResolver) ResolveApprover(ctx context.Context, step entity.PolicyStep, s *entity.Subject) (string, error) {
	if id, ok := r[step.ApproverType]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: no %s approver", entity.ErrInvalidArgument, step.ApproverType)
}

var policyClock = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestPolicyService(repo *mockPolicyRepo, resolver mapResolver) *policyServiceImpl {
	svc := NewPolicyService(repo, resolver, &mockLogger{}).(*policyServiceImpl)
	svc.now = func() time.Time { return policyClock }
	return svc
}

func managerOnly() []entity.PolicyStep {
	return []entity.PolicyStep{{Level: 1, Name: "Manager", ApproverType: entity.ApproverTypeManager}}
}

func boolPtr(v bool) *bool { return &v }

func TestPolicyService_Create(t *testing.T) {
	repo := newMockPolicyRepo()
	svc := newTestPolicyService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, PolicyRequest{
		ID:        "travel-small",
		Name:      "  Small trips  ",
		AppliesTo: "travel",
		Priority:  5,
		Steps:     managerOnly(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Small trips", p.Name)
	assert.True(t, p.Active)
	assert.True(t, p.CreatedAt.Equal(policyClock))
	assert.Contains(t, repo.policies, "travel-small")

	generated, err := svc.Create(ctx, PolicyRequest{Name: "Anything", AppliesTo: "all", Active: boolPtr(false)})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.False(t, generated.Active)

	_, err = svc.Create(ctx, PolicyRequest{ID: "travel-small", Name: "Again", AppliesTo: "travel"})
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)

	invalid := []PolicyRequest{
		{AppliesTo: "travel"},
		{Name: "x", AppliesTo: "meals"},
		{Name: "x", AppliesTo: "travel", MinAmount: -1},
		{Name: "x", AppliesTo: "travel", MinAmount: 500, MaxAmount: func() *float64 { v := 100.0; return &v }()},
		{Name: "x", AppliesTo: "travel", Steps: []entity.PolicyStep{{Level: 1, ApproverType: entity.ApproverTypeSpecificUser}}},
	}
	for i, req := range invalid {
		_, err := svc.Create(ctx, req)
		assert.True(t, errors.Is(err, entity.ErrInvalidArgument), "request %d: %v", i, err)
	}
}

func TestPolicyService_UpdateKeepsCreationAndActive(t *testing.T) {
	created := policyClock.Add(-48 * time.Hour)
	repo := newMockPolicyRepo(&entity.Policy{
		ID: "expense", Name: "Expense", AppliesTo: "expense", Active: false,
		Steps: managerOnly(), CreatedAt: created, UpdatedAt: created,
	})
	svc := newTestPolicyService(repo, nil)
	ctx := context.Background()

	p, err := svc.Update(ctx, "expense", PolicyRequest{ID: "other", Name: "Expense v2", AppliesTo: "expense", Priority: 7})
	require.NoError(t, err)
	assert.Equal(t, "expense", p.ID)
	assert.False(t, p.Active)
	assert.Equal(t, 7, p.Priority)
	assert.True(t, p.CreatedAt.Equal(created))
	assert.True(t, p.UpdatedAt.Equal(policyClock))
	assert.NotContains(t, repo.policies, "other")

	p, err = svc.Update(ctx, "expense", PolicyRequest{Name: "Expense v3", AppliesTo: "expense", Active: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, p.Active)

	_, err = svc.Update(ctx, "missing", PolicyRequest{Name: "x", AppliesTo: "travel"})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = svc.Update(ctx, "expense", PolicyRequest{Name: "x", AppliesTo: "bogus"})
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)
}

func TestPolicyService_Deactivate(t *testing.T) {
	repo := newMockPolicyRepo(&entity.Policy{ID: "p1", Name: "P1", AppliesTo: "all", Active: true})
	svc := newTestPolicyService(repo, nil)
	ctx := context.Background()

	p, err := svc.Deactivate(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.True(t, p.UpdatedAt.Equal(policyClock))

	_, err = svc.Deactivate(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPolicyService_Preview(t *testing.T) {
	ten := 10000.0
	repo := newMockPolicyRepo(
		&entity.Policy{ID: "small", Name: "Small", AppliesTo: "travel", MaxAmount: &ten, Priority: 10, Active: true,
			Steps: managerOnly()},
		&entity.Policy{ID: "large", Name: "Large", AppliesTo: "travel", MinAmount: ten, Priority: 20, Active: true,
			Steps: []entity.PolicyStep{
				{Level: 1, ApproverType: entity.ApproverTypeManager},
				{Level: 2, ApproverType: entity.ApproverTypeFinance},
			}},
		&entity.Policy{ID: "retired", Name: "Retired", AppliesTo: "all", Priority: 99, Active: false},
	)
	svc := newTestPolicyService(repo, mapResolver{entity.ApproverTypeManager: "mgr-1"})
	ctx := context.Background()

	preview, err := svc.Preview(ctx, MatchRequest{Type: "travel", OwnerID: "emp-1", Amount: 10000})
	require.NoError(t, err)
	assert.Equal(t, "large", preview.Policy.ID, "both bounds are inclusive; the higher priority wins")
	assert.Empty(t, preview.Chain)
	assert.Contains(t, preview.ChainError, "finance")

	preview, err = svc.Preview(ctx, MatchRequest{Type: "travel", OwnerID: "emp-1", Amount: 200})
	require.NoError(t, err)
	assert.Equal(t, "small", preview.Policy.ID)
	require.Len(t, preview.Chain, 1)
	assert.Equal(t, "mgr-1", preview.Chain[0].Approver)
	assert.Equal(t, entity.DefaultStepTimeoutHours, preview.Chain[0].TimeoutHours)
	assert.Empty(t, preview.ChainError)

	_, err = svc.Preview(ctx, MatchRequest{Type: "expense", Amount: 50})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = svc.Preview(ctx, MatchRequest{Type: "meals"})
	assert.ErrorIs(t, err, entity.ErrInvalidArgument)

	repo.listErr = errors.New("disk gone")
	_, err = svc.Preview(ctx, MatchRequest{Type: "travel", Amount: 1})
	assert.Error(t, err)
}
