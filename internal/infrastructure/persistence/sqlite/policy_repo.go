package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

const policyColumns = `
	id, name, applies_to, min_amount, max_amount, departments, job_levels,
	priority, active, steps, created_at, updated_at`

// PolicyRepository implements port.PolicyRepository
type PolicyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) *PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// policyRow holds the encoded column values of a policy
type policyRow struct {
	maxAmount   sql.NullFloat64
	departments string
	jobLevels   string
	steps       string
}

func encodePolicy(policy *entity.Policy) (policyRow, error) {
	var row policyRow
	var err error
	if row.departments, err = encodeJSON(nonNil(policy.Departments)); err != nil {
		return row, err
	}
	if row.jobLevels, err = encodeJSON(nonNil(policy.JobLevels)); err != nil {
		return row, err
	}
	steps := policy.Steps
	if steps == nil {
		steps = []entity.PolicyStep{}
	}
	if row.steps, err = encodeJSON(steps); err != nil {
		return row, err
	}
	if policy.MaxAmount != nil {
		row.maxAmount = sql.NullFloat64{Float64: *policy.MaxAmount, Valid: true}
	}
	return row, nil
}

// Create inserts a policy. A zero UpdatedAt is stored as CreatedAt.
func (r *PolicyRepository) Create(ctx context.Context, policy *entity.Policy) error {
	row, err := encodePolicy(policy)
	if err != nil {
		return err
	}
	updated := policy.UpdatedAt
	if updated.IsZero() {
		updated = policy.CreatedAt
	}

	query := `INSERT INTO approval_policies (` + policyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.executor(ctx).ExecContext(ctx, query,
		policy.ID,
		policy.Name,
		policy.AppliesTo,
		policy.MinAmount,
		row.maxAmount,
		row.departments,
		row.jobLevels,
		policy.Priority,
		policy.Active,
		row.steps,
		utc(policy.CreatedAt),
		utc(updated),
	)
	if err != nil {
		r.logger.Error("Failed to create policy", zap.String("policy_id", policy.ID), zap.Error(err))
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

// Get returns one policy by id
func (r *PolicyRepository) Get(ctx context.Context, id string) (*entity.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM approval_policies WHERE id = ?`
	policies, err := r.query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, fmt.Errorf("policy %s: %w", id, entity.ErrNotFound)
	}
	return policies[0], nil
}

// Update rewrites every column except id and created_at
func (r *PolicyRepository) Update(ctx context.Context, policy *entity.Policy) error {
	row, err := encodePolicy(policy)
	if err != nil {
		return err
	}

	query := `UPDATE approval_policies SET
		name = ?, applies_to = ?, min_amount = ?, max_amount = ?, departments = ?,
		job_levels = ?, priority = ?, active = ?, steps = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.executor(ctx).ExecContext(ctx, query,
		policy.Name,
		policy.AppliesTo,
		policy.MinAmount,
		row.maxAmount,
		row.departments,
		row.jobLevels,
		policy.Priority,
		policy.Active,
		row.steps,
		utc(policy.UpdatedAt),
		policy.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update policy", zap.String("policy_id", policy.ID), zap.Error(err))
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return requireRow(res, policy.ID)
}

// Deactivate marks a policy inactive. Submitted subjects keep their frozen chains.
func (r *PolicyRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.executor(ctx).ExecContext(ctx,
		`UPDATE approval_policies SET active = 0, updated_at = ? WHERE id = ?`, utc(at), id)
	if err != nil {
		r.logger.Error("Failed to deactivate policy", zap.String("policy_id", id), zap.Error(err))
		return fmt.Errorf("failed to deactivate policy: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("policy %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// ListActive returns active policies applying to the subject type, highest priority first
func (r *PolicyRepository) ListActive(ctx context.Context, subjectType entity.SubjectType) ([]*entity.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM approval_policies
		WHERE active = 1 AND (applies_to = ? OR applies_to = ?)
		ORDER BY priority DESC, id`
	return r.query(ctx, query, string(subjectType), entity.PolicyScopeAll)
}

// List returns all policies
func (r *PolicyRepository) List(ctx context.Context) ([]*entity.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM approval_policies ORDER BY priority DESC, id`
	return r.query(ctx, query)
}

func (r *PolicyRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Policy, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list policies", zap.Error(err))
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []*entity.Policy
	for rows.Next() {
		var (
			p           entity.Policy
			maxAmount   sql.NullFloat64
			departments string
			jobLevels   string
			steps       string
			updatedAt   sql.NullTime
		)
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.AppliesTo,
			&p.MinAmount,
			&maxAmount,
			&departments,
			&jobLevels,
			&p.Priority,
			&p.Active,
			&steps,
			&p.CreatedAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		if maxAmount.Valid {
			v := maxAmount.Float64
			p.MaxAmount = &v
		}
		if err := decodeJSON(departments, &p.Departments); err != nil {
			return nil, err
		}
		if err := decodeJSON(jobLevels, &p.JobLevels); err != nil {
			return nil, err
		}
		if err := decodeJSON(steps, &p.Steps); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.CreatedAt
		if updatedAt.Valid {
			p.UpdatedAt = updatedAt.Time.UTC()
		}
		policies = append(policies, &p)
	}
	return policies, rows.Err()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

var _ port.PolicyRepository = (*PolicyRepository)(nil)
