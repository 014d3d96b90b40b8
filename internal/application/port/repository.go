package port

import (
	"context"
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// SubjectRepository is the subject adapter contract. Load and Save return copies;
// Save writes the subject and its records atomically only if the stored version
// still equals expectedVersion, and bumps subject.Version on success.
type SubjectRepository interface {
	Create(ctx context.Context, subject *entity.Subject) error
	Load(ctx context.Context, id string) (*entity.Subject, error)
	Save(ctx context.Context, subject *entity.Subject, expectedVersion int64) error
	ListIDs(ctx context.Context) ([]string, error)
	ListPendingFor(ctx context.Context, approver string) ([]*entity.Subject, error)
}

// RecordFilter scopes a record scan. From/To is a half-open window matched against
// decidedAt, or against the subject's creation time for pending records.
type RecordFilter struct {
	Type        entity.SubjectType
	From        time.Time
	To          time.Time
	PendingOnly bool
}

// RecordView is one approval record joined with the subject fields aggregation needs
type RecordView struct {
	SubjectID        string
	SubjectType      entity.SubjectType
	SubjectCreatedAt time.Time
	TimeoutHours     int
	Record           entity.ApprovalRecord
}

// RecordReader scans approval records across subjects. One call must observe a
// consistent snapshot: never a decided record without its successor or the reverse.
type RecordReader interface {
	ListRecords(ctx context.Context, filter RecordFilter) ([]RecordView, error)
}

// PolicyRepository stores approval policies. Get, Update and Deactivate return
// entity.ErrNotFound for unknown ids. Policies are never deleted.
type PolicyRepository interface {
	Create(ctx context.Context, policy *entity.Policy) error
	Get(ctx context.Context, id string) (*entity.Policy, error)
	Update(ctx context.Context, policy *entity.Policy) error
	Deactivate(ctx context.Context, id string, at time.Time) error
	ListActive(ctx context.Context, subjectType entity.SubjectType) ([]*entity.Policy, error)
	List(ctx context.Context) ([]*entity.Policy, error)
}
