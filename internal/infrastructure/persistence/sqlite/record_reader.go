package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// RecordReader implements port.RecordReader with a single joined query, which
// SQLite runs against one consistent snapshot
type RecordReader struct {
	db     *DB
	logger *zap.Logger
}

// NewRecordReader creates a new record reader
func NewRecordReader(db *DB, logger *zap.Logger) *RecordReader {
	return &RecordReader{
		db:     db,
		logger: logger,
	}
}

// ListRecords returns records matching the filter, ordered by subject and level
func (r *RecordReader) ListRecords(ctx context.Context, filter port.RecordFilter) ([]port.RecordView, error) {
	query, args := buildRecordQuery(filter)

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list records", zap.Error(err))
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	chains := make(map[string][]entity.ChainStep)
	var views []port.RecordView
	for rows.Next() {
		var (
			v       port.RecordView
			chain   string
			decided sql.NullTime
		)
		err := rows.Scan(
			&v.SubjectID,
			&v.SubjectType,
			&v.SubjectCreatedAt,
			&chain,
			&v.Record.Level,
			&v.Record.Approver,
			&v.Record.Status,
			&v.Record.Comments,
			&v.Record.ActivatedAt,
			&decided,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		v.SubjectCreatedAt = v.SubjectCreatedAt.UTC()
		v.Record.ActivatedAt = v.Record.ActivatedAt.UTC()
		v.Record.DecidedAt = timePtr(decided)

		steps, ok := chains[v.SubjectID]
		if !ok {
			if err := decodeJSON(chain, &steps); err != nil {
				return nil, err
			}
			chains[v.SubjectID] = steps
		}
		if v.Record.Level >= 1 && v.Record.Level <= len(steps) {
			v.TimeoutHours = steps[v.Record.Level-1].TimeoutHours
		}

		views = append(views, v)
	}
	return views, rows.Err()
}

func buildRecordQuery(filter port.RecordFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Type != "" {
		where = append(where, "r.subject_type = ?")
		args = append(args, filter.Type)
	}
	if filter.PendingOnly {
		where = append(where, "r.status = ?")
		args = append(args, entity.RecordStatusPending)
	}

	// decided records are placed by decided_at, pending ones by the subject's creation
	var decided, pending []string
	if !filter.From.IsZero() {
		decided = append(decided, "r.decided_at >= ?")
		pending = append(pending, "s.created_at >= ?")
	}
	if !filter.To.IsZero() {
		decided = append(decided, "r.decided_at < ?")
		pending = append(pending, "s.created_at < ?")
	}
	if len(decided) > 0 {
		where = append(where, fmt.Sprintf(
			"((r.decided_at IS NOT NULL AND %s) OR (r.decided_at IS NULL AND %s))",
			strings.Join(decided, " AND "), strings.Join(pending, " AND ")))
		args = append(args, windowArgs(filter)...)
		args = append(args, windowArgs(filter)...)
	}

	query := `
		SELECT r.subject_id, r.subject_type, s.created_at, s.chain,
			r.level, r.approver, r.status, r.comments, r.activated_at, r.decided_at
		FROM approval_records r
		JOIN subjects s ON s.id = r.subject_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY r.subject_id, r.level"
	return query, args
}

func windowArgs(filter port.RecordFilter) []interface{} {
	var args []interface{}
	if !filter.From.IsZero() {
		args = append(args, utc(filter.From))
	}
	if !filter.To.IsZero() {
		args = append(args, utc(filter.To))
	}
	return args
}

var _ port.RecordReader = (*RecordReader)(nil)
