package directory

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Config holds the approver tables the directory resolves against
type Config struct {
	// Managers maps an employee id to their manager
	Managers map[string]string
	// DefaultManager is used when an owner has no manager entry
	DefaultManager string
	// DepartmentHeads maps a department to its head
	DepartmentHeads map[string]string
	// Roles maps a role name to the user holding it
	Roles map[string]string
	// Finance is the finance approver
	Finance string
	// Delegates maps an approver to users allowed to decide on their behalf
	Delegates map[string][]string
}

// Directory is a static identity collaborator backed by configuration.
// It resolves policy steps, authorizes delegates and lists the approver roster.
type Directory struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a directory
func New(cfg Config, logger *zap.Logger) *Directory {
	return &Directory{cfg: cfg, logger: logger}
}

// ResolveApprover maps a policy step to a concrete approver for the subject
func (d *Directory) ResolveApprover(ctx context.Context, step entity.PolicyStep, subject *entity.Subject) (string, error) {
	var approver string
	switch step.ApproverType {
	case entity.ApproverTypeSpecificUser:
		approver = step.ApproverID
	case entity.ApproverTypeManager:
		approver = d.cfg.Managers[subject.OwnerID]
		if approver == "" {
			approver = d.cfg.DefaultManager
		}
	case entity.ApproverTypeDepartmentHead:
		approver = d.cfg.DepartmentHeads[subject.Department]
	case entity.ApproverTypeRole:
		approver = d.cfg.Roles[step.Role]
	case entity.ApproverTypeFinance:
		approver = d.cfg.Finance
		if approver == "" {
			approver = d.cfg.Roles["finance"]
		}
	default:
		return "", fmt.Errorf("%w: unknown approver type %q", entity.ErrInvalidArgument, step.ApproverType)
	}

	if approver == "" {
		d.logger.Info("Approver not resolvable",
			zap.String("subject_id", subject.ID),
			zap.String("approver_type", string(step.ApproverType)),
			zap.Int("level", step.Level))
		return "", fmt.Errorf("%w: no %s approver for level %d", entity.ErrInvalidArgument, step.ApproverType, step.Level)
	}
	return approver, nil
}

// IsAssignedApprover reports whether actor is a configured delegate of the level's assignee
func (d *Directory) IsAssignedApprover(ctx context.Context, actorID string, subject *entity.Subject, level int) (bool, error) {
	rec := subject.Record(level)
	if rec == nil {
		return false, nil
	}
	if rec.Approver == actorID {
		return true, nil
	}
	for _, delegate := range d.cfg.Delegates[rec.Approver] {
		if delegate == actorID {
			d.logger.Info("Delegate authorized",
				zap.String("subject_id", subject.ID),
				zap.String("actor_id", actorID),
				zap.String("on_behalf_of", rec.Approver))
			return true, nil
		}
	}
	return false, nil
}

// ListApprovers returns every approver named in the tables, sorted
func (d *Directory) ListApprovers(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(id string) {
		if id != "" {
			seen[id] = struct{}{}
		}
	}

	for _, m := range d.cfg.Managers {
		add(m)
	}
	add(d.cfg.DefaultManager)
	for _, h := range d.cfg.DepartmentHeads {
		add(h)
	}
	for _, u := range d.cfg.Roles {
		add(u)
	}
	add(d.cfg.Finance)

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

var (
	_ port.ApproverResolver  = (*Directory)(nil)
	_ port.ApproverDirectory = (*Directory)(nil)
	_ port.ApproverRoster    = (*Directory)(nil)
)
