package memory

import (
	"context"
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// DefaultPolicies mirrors the policies seeded by the SQL migrations
func DefaultPolicies() []*entity.Policy {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	five, ten := 5000.0, 10000.0

	manager := entity.PolicyStep{Level: 1, Name: "Manager review", ApproverType: entity.ApproverTypeManager, TimeoutHours: 48}
	head := entity.PolicyStep{Level: 2, Name: "Department head review", ApproverType: entity.ApproverTypeDepartmentHead, TimeoutHours: 48}
	finance := func(level int) entity.PolicyStep {
		return entity.PolicyStep{Level: level, Name: "Finance review", ApproverType: entity.ApproverTypeFinance, TimeoutHours: 72}
	}

	return []*entity.Policy{
		{ID: "travel-standard", Name: "Travel up to 5000", AppliesTo: string(entity.SubjectTypeTravel),
			MaxAmount: &five, Priority: 10, Active: true, Steps: []entity.PolicyStep{manager}, CreatedAt: created},
		{ID: "travel-elevated", Name: "Travel 5000 to 10000", AppliesTo: string(entity.SubjectTypeTravel),
			MinAmount: five, MaxAmount: &ten, Priority: 20, Active: true, Steps: []entity.PolicyStep{manager, head}, CreatedAt: created},
		{ID: "travel-large", Name: "Travel above 10000", AppliesTo: string(entity.SubjectTypeTravel),
			MinAmount: ten, Priority: 30, Active: true, Steps: []entity.PolicyStep{manager, head, finance(3)}, CreatedAt: created},
		{ID: "expense-standard", Name: "Expense claims", AppliesTo: string(entity.SubjectTypeExpense),
			Priority: 10, Active: true, Steps: []entity.PolicyStep{manager, finance(2)}, CreatedAt: created},
	}
}

// SeedDefaults stores DefaultPolicies
func (s *Store) SeedDefaults(ctx context.Context) error {
	policies := s.Policies()
	for _, p := range DefaultPolicies() {
		p.UpdatedAt = p.CreatedAt
		if err := policies.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
