package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/report"
)

// ApproverDirectory is the identity oracle deciding who may decide a level
// when the actor is not the record's assignee (delegation)
type ApproverDirectory interface {
	IsAssignedApprover(ctx context.Context, actorID string, subject *entity.Subject, level int) (bool, error)
}

// ApproverResolver turns a policy step into a concrete approver for a subject
type ApproverResolver interface {
	ResolveApprover(ctx context.Context, step entity.PolicyStep, subject *entity.Subject) (string, error)
}

// ApproverRoster lists every known approver, for zero-filled workload reports
type ApproverRoster interface {
	ListApprovers(ctx context.Context) ([]string, error)
}

// Notification is a rendered message for one recipient
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient"`
	SubjectID string    `json:"subjectId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationPublisher hands notifications to the delivery pipeline
type NotificationPublisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Messenger delivers a text message to a recipient
type Messenger interface {
	SendText(ctx context.Context, recipient, text string) error
}

// ReportCache caches serialized report results
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ReportExporter renders an overview as a downloadable document
type ReportExporter interface {
	ContentType() string
	Write(w io.Writer, overview *report.Overview) error
}
