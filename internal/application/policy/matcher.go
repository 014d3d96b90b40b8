package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Match picks the policy governing a subject: the highest-priority active policy for
// its type whose amount range, departments and job levels all admit the subject.
// Empty department or job-level lists admit everyone. Ties keep input order.
func Match(policies []*entity.Policy, subject *entity.Subject) (*entity.Policy, error) {
	candidates := make([]*entity.Policy, 0, len(policies))
	for _, p := range policies {
		if p.Active && p.AppliesToType(subject.Type) {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	for _, p := range candidates {
		if !p.ContainsAmount(subject.Amount) {
			continue
		}
		if !admits(p.Departments, subject.Department) || !admits(p.JobLevels, subject.JobLevel) {
			continue
		}
		return p, nil
	}

	return nil, fmt.Errorf("%w: no approval policy for %s subject of amount %.2f", entity.ErrNotFound, subject.Type, subject.Amount)
}

// BuildChain resolves every policy step into a frozen chain step
func BuildChain(ctx context.Context, resolver port.ApproverResolver, p *entity.Policy, subject *entity.Subject) ([]entity.ChainStep, error) {
	steps := append([]entity.PolicyStep{}, p.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Level < steps[j].Level })

	chain := make([]entity.ChainStep, 0, len(steps))
	for i, step := range steps {
		approver, err := resolver.ResolveApprover(ctx, step, subject)
		if err != nil {
			return nil, fmt.Errorf("resolve level %d of policy %s: %w", step.Level, p.ID, err)
		}
		timeout := step.TimeoutHours
		if timeout <= 0 {
			timeout = entity.DefaultStepTimeoutHours
		}
		chain = append(chain, entity.ChainStep{
			Level:        i + 1,
			Name:         step.Name,
			Approver:     approver,
			TimeoutHours: timeout,
		})
	}

	return chain, nil
}

func admits(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}
