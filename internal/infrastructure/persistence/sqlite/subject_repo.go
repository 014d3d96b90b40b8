package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

const subjectColumns = `
	id, subject_type, owner_id, title, amount, department, job_level,
	status, policy_id, chain, version, created_at, submitted_at, updated_at`

// SubjectRepository implements port.SubjectRepository
type SubjectRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSubjectRepository creates a new subject repository
func NewSubjectRepository(db *DB, logger *zap.Logger) *SubjectRepository {
	return &SubjectRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new subject with its records
func (r *SubjectRepository) Create(ctx context.Context, subject *entity.Subject) error {
	chain, err := encodeJSON(subject.Chain)
	if err != nil {
		return err
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO subjects (` + subjectColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.db.executor(ctx).ExecContext(ctx, query,
			subject.ID,
			subject.Type,
			subject.OwnerID,
			subject.Title,
			subject.Amount,
			subject.Department,
			subject.JobLevel,
			subject.Status,
			subject.PolicyID,
			chain,
			subject.Version,
			utc(subject.CreatedAt),
			nullTime(subject.SubmittedAt),
			utc(subject.UpdatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create subject", zap.String("subject_id", subject.ID), zap.Error(err))
			return fmt.Errorf("failed to create subject: %w", err)
		}
		return r.upsertRecords(ctx, subject)
	})
}

// Load reads a subject and its records
func (r *SubjectRepository) Load(ctx context.Context, id string) (*entity.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = ?`

	subject, err := scanSubject(r.db.executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subject %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to load subject", zap.String("subject_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to load subject: %w", err)
	}

	records, err := r.records(ctx, id)
	if err != nil {
		return nil, err
	}
	subject.Approvals = records
	return subject, nil
}

// Save writes the subject and upserts its records if the stored version still equals
// expectedVersion. The subject's Version is bumped on success.
func (r *SubjectRepository) Save(ctx context.Context, subject *entity.Subject, expectedVersion int64) error {
	chain, err := encodeJSON(subject.Chain)
	if err != nil {
		return err
	}

	err = r.db.WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			UPDATE subjects SET
				title = ?, amount = ?, department = ?, job_level = ?, status = ?,
				policy_id = ?, chain = ?, submitted_at = ?, updated_at = ?,
				version = version + 1
			WHERE id = ? AND version = ?
		`
		res, err := r.db.executor(ctx).ExecContext(ctx, query,
			subject.Title,
			subject.Amount,
			subject.Department,
			subject.JobLevel,
			subject.Status,
			subject.PolicyID,
			chain,
			nullTime(subject.SubmittedAt),
			utc(subject.UpdatedAt),
			subject.ID,
			expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to update subject: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return r.missOrConflict(ctx, subject.ID, expectedVersion)
		}

		return r.upsertRecords(ctx, subject)
	})
	if err != nil {
		if !errors.Is(err, entity.ErrVersionConflict) {
			r.logger.Error("Failed to save subject", zap.String("subject_id", subject.ID), zap.Error(err))
		}
		return err
	}

	subject.Version = expectedVersion + 1
	return nil
}

// ListIDs returns every subject id, oldest first
func (r *SubjectRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx, `SELECT id FROM subjects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subject id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPendingFor returns pending subjects whose active record is assigned to approver
func (r *SubjectRepository) ListPendingFor(ctx context.Context, approver string) ([]*entity.Subject, error) {
	query := `
		SELECT DISTINCT subject_id FROM approval_records
		WHERE approver = ? AND status = ?
		ORDER BY activated_at, subject_id
	`
	rows, err := r.db.executor(ctx).QueryContext(ctx, query, approver, entity.RecordStatusPending)
	if err != nil {
		r.logger.Error("Failed to list pending subjects", zap.String("approver", approver), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending subjects: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan subject id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	subjects := make([]*entity.Subject, 0, len(ids))
	for _, id := range ids {
		s, err := r.Load(ctx, id)
		if errors.Is(err, entity.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}

func (r *SubjectRepository) missOrConflict(ctx context.Context, id string, expected int64) error {
	var current int64
	err := r.db.executor(ctx).QueryRowContext(ctx, `SELECT version FROM subjects WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("subject %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read subject version: %w", err)
	}
	return fmt.Errorf("subject %s at version %d, expected %d: %w", id, current, expected, entity.ErrVersionConflict)
}

func (r *SubjectRepository) upsertRecords(ctx context.Context, subject *entity.Subject) error {
	query := `
		INSERT INTO approval_records (
			subject_id, subject_type, level, approver, status, comments, activated_at, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, level) DO UPDATE SET
			approver = excluded.approver,
			status = excluded.status,
			comments = excluded.comments,
			activated_at = excluded.activated_at,
			decided_at = excluded.decided_at
	`
	for _, rec := range subject.Approvals {
		_, err := r.db.executor(ctx).ExecContext(ctx, query,
			subject.ID,
			subject.Type,
			rec.Level,
			rec.Approver,
			rec.Status,
			rec.Comments,
			utc(rec.ActivatedAt),
			nullTime(rec.DecidedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert record level %d: %w", rec.Level, err)
		}
	}
	return nil
}

func (r *SubjectRepository) records(ctx context.Context, subjectID string) ([]entity.ApprovalRecord, error) {
	query := `
		SELECT level, approver, status, comments, activated_at, decided_at
		FROM approval_records
		WHERE subject_id = ?
		ORDER BY level
	`
	rows, err := r.db.executor(ctx).QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	records := []entity.ApprovalRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanSubject(row scanner) (*entity.Subject, error) {
	var (
		s         entity.Subject
		chain     string
		submitted sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.Type,
		&s.OwnerID,
		&s.Title,
		&s.Amount,
		&s.Department,
		&s.JobLevel,
		&s.Status,
		&s.PolicyID,
		&chain,
		&s.Version,
		&s.CreatedAt,
		&submitted,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Chain = []entity.ChainStep{}
	if err := decodeJSON(chain, &s.Chain); err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.SubmittedAt = timePtr(submitted)
	return &s, nil
}

func scanRecord(row scanner) (entity.ApprovalRecord, error) {
	var (
		rec     entity.ApprovalRecord
		decided sql.NullTime
	)
	if err := row.Scan(&rec.Level, &rec.Approver, &rec.Status, &rec.Comments, &rec.ActivatedAt, &decided); err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}
	rec.ActivatedAt = rec.ActivatedAt.UTC()
	rec.DecidedAt = timePtr(decided)
	return rec, nil
}

var _ port.SubjectRepository = (*SubjectRepository)(nil)
