package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateSubjectRequest is the input for a new draft subject
type CreateSubjectRequest struct {
	Type       string  `json:"type" validate:"required,oneof=travel expense"`
	OwnerID    string  `json:"ownerId" validate:"required,max=100"`
	Title      string  `json:"title" validate:"required,max=200"`
	Amount     float64 `json:"amount" validate:"gte=0"`
	Department string  `json:"department" validate:"max=100"`
	JobLevel   string  `json:"jobLevel" validate:"max=50"`
}

// SubmitRequest is the input for submitting a draft
type SubmitRequest struct {
	ActorID string `json:"actorId" validate:"required"`
}

// VerifyReport summarizes a replay of every stored subject
type VerifyReport struct {
	Checked   int               `json:"checked"`
	Divergent map[string]string `json:"divergent"`
}

// ApprovalService is the entry point for subject lifecycle operations
type ApprovalService interface {
	CreateSubject(ctx context.Context, req CreateSubjectRequest) (*entity.Subject, error)
	GetSubject(ctx context.Context, id string) (*workflow.Result, error)
	Submit(ctx context.Context, id string, req SubmitRequest) (*workflow.Result, error)
	Decide(ctx context.Context, decision entity.Decision) (*workflow.Result, error)
	ListPending(ctx context.Context, approver string) ([]*entity.Subject, error)
	VerifyAll(ctx context.Context) (*VerifyReport, error)
}

type approvalServiceImpl struct {
	subjects port.SubjectRepository
	engine   workflow.Engine
	logger   Logger
	now      func() time.Time
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(subjects port.SubjectRepository, engine workflow.Engine, logger Logger) ApprovalService {
	return &approvalServiceImpl{
		subjects: subjects,
		engine:   engine,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateSubject validates the request and stores a draft
func (s *approvalServiceImpl) CreateSubject(ctx context.Context, req CreateSubjectRequest) (*entity.Subject, error) {
	req.Title = utils.SanitizeString(req.Title)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidArgument, err)
	}

	subject := entity.NewSubject(entity.SubjectType(req.Type), req.OwnerID, req.Title, req.Amount, s.now())
	subject.Department = req.Department
	subject.JobLevel = req.JobLevel

	if err := s.subjects.Create(ctx, subject); err != nil {
		s.logger.Error("Failed to create subject", "error", err, "owner_id", req.OwnerID)
		return nil, fmt.Errorf("create subject: %w", err)
	}

	s.logger.Info("Subject created", "subject_id", subject.ID, "type", subject.Type, "amount", subject.Amount)
	return subject, nil
}

// GetSubject returns a subject with its verified projection
func (s *approvalServiceImpl) GetSubject(ctx context.Context, id string) (*workflow.Result, error) {
	return s.engine.Project(ctx, id)
}

// Submit starts the approval chain
func (s *approvalServiceImpl) Submit(ctx context.Context, id string, req SubmitRequest) (*workflow.Result, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidArgument, err)
	}
	return s.engine.Submit(ctx, id, req.ActorID)
}

// Decide validates and applies a decision
func (s *approvalServiceImpl) Decide(ctx context.Context, decision entity.Decision) (*workflow.Result, error) {
	decision.Comments = utils.SanitizeString(decision.Comments)
	if err := utils.ValidateStruct(decision); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidArgument, err)
	}
	return s.engine.ApplyDecision(ctx, decision)
}

// ListPending returns subjects waiting on the approver
func (s *approvalServiceImpl) ListPending(ctx context.Context, approver string) ([]*entity.Subject, error) {
	if approver == "" {
		return nil, fmt.Errorf("%w: approver is required", entity.ErrInvalidArgument)
	}
	subjects, err := s.subjects.ListPendingFor(ctx, approver)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return subjects, nil
}

// VerifyAll replays every subject and reports those whose stored status diverges
func (s *approvalServiceImpl) VerifyAll(ctx context.Context) (*VerifyReport, error) {
	ids, err := s.subjects.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	rep := &VerifyReport{Divergent: map[string]string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Checked++

		_, err := s.engine.Project(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, domainwf.ErrCorruptChain):
			rep.Divergent[id] = err.Error()
		default:
			return nil, err
		}
	}

	s.logger.Info("Replay verification finished", "checked", rep.Checked, "divergent", len(rep.Divergent))
	return rep, nil
}
