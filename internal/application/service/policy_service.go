package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/travel-approval/internal/application/policy"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/pkg/utils"
)

// PolicyRequest is the input for creating or replacing a policy.
// Active defaults to true on create and to the stored value on update.
type PolicyRequest struct {
	ID          string              `json:"id" validate:"omitempty,max=64"`
	Name        string              `json:"name" validate:"required,max=200"`
	AppliesTo   string              `json:"appliesTo" validate:"required,oneof=travel expense all"`
	MinAmount   float64             `json:"minAmount" validate:"gte=0"`
	MaxAmount   *float64            `json:"maxAmount" validate:"omitempty,gte=0"`
	Departments []string            `json:"departments" validate:"dive,max=100"`
	JobLevels   []string            `json:"jobLevels" validate:"dive,max=50"`
	Priority    int                 `json:"priority"`
	Active      *bool               `json:"active"`
	Steps       []entity.PolicyStep `json:"steps"`
}

// MatchRequest describes a hypothetical subject to run through policy matching
type MatchRequest struct {
	Type       string  `json:"type" validate:"required,oneof=travel expense"`
	OwnerID    string  `json:"ownerId" validate:"max=100"`
	Amount     float64 `json:"amount" validate:"gte=0"`
	Department string  `json:"department" validate:"max=100"`
	JobLevel   string  `json:"jobLevel" validate:"max=50"`
}

// MatchPreview is the policy a subject would be submitted under and the chain it would get.
// ChainError is set instead of Chain when an approver cannot be resolved.
type MatchPreview struct {
	Policy     *entity.Policy     `json:"policy"`
	Chain      []entity.ChainStep `json:"chain"`
	ChainError string             `json:"chainError,omitempty"`
}

// PolicyService manages approval policies. Changes apply to later submissions only;
// submitted subjects keep the chain frozen at submission.
type PolicyService interface {
	List(ctx context.Context) ([]*entity.Policy, error)
	Get(ctx context.Context, id string) (*entity.Policy, error)
	Create(ctx context.Context, req PolicyRequest) (*entity.Policy, error)
	Update(ctx context.Context, id string, req PolicyRequest) (*entity.Policy, error)
	Deactivate(ctx context.Context, id string) (*entity.Policy, error)
	Preview(ctx context.Context, req MatchRequest) (*MatchPreview, error)
}

type policyServiceImpl struct {
	policies port.PolicyRepository
	resolver port.ApproverResolver
	logger   Logger
	now      func() time.Time
}

// NewPolicyService creates a new PolicyService
func NewPolicyService(policies port.PolicyRepository, resolver port.ApproverResolver, logger Logger) PolicyService {
	return &policyServiceImpl{
		policies: policies,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns every policy, highest priority first
func (s *policyServiceImpl) List(ctx context.Context) ([]*entity.Policy, error) {
	policies, err := s.policies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// Get returns one policy
func (s *policyServiceImpl) Get(ctx context.Context, id string) (*entity.Policy, error) {
	return s.policies.Get(ctx, id)
}

// Create validates and stores a new policy, generating an id when none is given
func (s *policyServiceImpl) Create(ctx context.Context, req PolicyRequest) (*entity.Policy, error) {
	p, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if req.Active == nil {
		p.Active = true
	}

	if _, err := s.policies.Get(ctx, p.ID); err == nil {
		return nil, fmt.Errorf("%w: policy %s already exists", entity.ErrInvalidArgument, p.ID)
	} else if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("check policy %s: %w", p.ID, err)
	}

	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.policies.Create(ctx, p); err != nil {
		s.logger.Error("Failed to create policy", "error", err, "policy_id", p.ID)
		return nil, fmt.Errorf("create policy: %w", err)
	}

	s.logger.Info("Policy created", "policy_id", p.ID, "applies_to", p.AppliesTo, "levels", len(p.Steps))
	return p, nil
}

// Update replaces the policy's rules. The id in the path wins over the body.
func (s *policyServiceImpl) Update(ctx context.Context, id string, req PolicyRequest) (*entity.Policy, error) {
	existing, err := s.policies.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req.ID = id
	p, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if req.Active == nil {
		p.Active = existing.Active
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()

	if err := s.policies.Update(ctx, p); err != nil {
		s.logger.Error("Failed to update policy", "error", err, "policy_id", id)
		return nil, fmt.Errorf("update policy: %w", err)
	}

	s.logger.Info("Policy updated", "policy_id", id, "active", p.Active, "levels", len(p.Steps))
	return p, nil
}

// Deactivate stops a policy from matching new submissions
func (s *policyServiceImpl) Deactivate(ctx context.Context, id string) (*entity.Policy, error) {
	if err := s.policies.Deactivate(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}
	s.logger.Info("Policy deactivated", "policy_id", id)
	return s.policies.Get(ctx, id)
}

// Preview runs the matching used at submission without storing anything
func (s *policyServiceImpl) Preview(ctx context.Context, req MatchRequest) (*MatchPreview, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidArgument, err)
	}

	subject := &entity.Subject{
		Type:       entity.SubjectType(req.Type),
		OwnerID:    req.OwnerID,
		Amount:     req.Amount,
		Department: req.Department,
		JobLevel:   req.JobLevel,
		Status:     entity.SubjectStatusDraft,
	}

	candidates, err := s.policies.ListActive(ctx, subject.Type)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	matched, err := policy.Match(candidates, subject)
	if err != nil {
		return nil, err
	}

	preview := &MatchPreview{Policy: matched, Chain: []entity.ChainStep{}}
	chain, err := policy.BuildChain(ctx, s.resolver, matched, subject)
	if err != nil {
		preview.ChainError = err.Error()
		return preview, nil
	}
	preview.Chain = chain
	return preview, nil
}

func (s *policyServiceImpl) build(req PolicyRequest) (*entity.Policy, error) {
	req.Name = utils.SanitizeString(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidArgument, err)
	}

	p := &entity.Policy{
		ID:          req.ID,
		Name:        req.Name,
		AppliesTo:   req.AppliesTo,
		MinAmount:   req.MinAmount,
		MaxAmount:   req.MaxAmount,
		Departments: req.Departments,
		JobLevels:   req.JobLevels,
		Priority:    req.Priority,
		Steps:       req.Steps,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
