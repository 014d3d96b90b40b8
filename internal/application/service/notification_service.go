package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/event"
)

// Notification kinds
const (
	NotifySubmitted = "submitted"
	NotifyAssigned  = "assigned"
	NotifyOutcome   = "outcome"
	NotifyOverdue   = "overdue"
)

// NotificationService turns workflow events into notifications
type NotificationService interface {
	// Register subscribes the service's handlers on d
	Register(d dispatcher.Dispatcher)

	// Handle renders and publishes the notification for one event
	Handle(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	publisher port.NotificationPublisher
	logger    Logger
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(publisher port.NotificationPublisher, logger Logger) NotificationService {
	return &notificationServiceImpl{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Register subscribes one handler per workflow event type
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeSubjectSubmitted, "notify-owner-submitted", "Tell the owner a subject entered review", s.Handle)
	d.SubscribeNamed(event.TypeApprovalAdvanced, "notify-approver-assigned", "Tell the next approver a level is waiting", s.Handle)
	d.SubscribeNamed(event.TypeApprovalTerminal, "notify-owner-outcome", "Tell the owner the final outcome", s.Handle)
	d.SubscribeNamed(event.TypeApprovalOverdue, "notify-approver-overdue", "Remind an approver of an overdue level", s.Handle)
}

// Handle renders the event into a notification and publishes it
func (s *notificationServiceImpl) Handle(ctx context.Context, evt *event.Event) error {
	n, ok := s.render(evt)
	if !ok {
		return nil
	}
	if n.Recipient == "" {
		s.logger.Info("Notification skipped, no recipient", "event_type", evt.Type, "subject_id", evt.SubjectID)
		return nil
	}

	if err := s.publisher.Publish(ctx, n); err != nil {
		s.logger.Error("Failed to publish notification", "error", err, "subject_id", evt.SubjectID, "kind", n.Kind)
		return fmt.Errorf("publish notification: %w", err)
	}

	s.logger.Info("Notification published", "subject_id", evt.SubjectID, "kind", n.Kind, "recipient", n.Recipient)
	return nil
}

func (s *notificationServiceImpl) render(evt *event.Event) (port.Notification, bool) {
	n := port.Notification{
		SubjectID: evt.SubjectID,
		CreatedAt: s.now().UTC(),
	}

	switch evt.Type {
	case event.TypeSubjectSubmitted:
		n.Kind = NotifySubmitted
		n.Recipient = evt.GetPayloadString(event.KeyOwnerID)
		n.Text = fmt.Sprintf("Your %s request %q was submitted for approval (%d level(s)).",
			evt.GetPayloadString(event.KeySubjectType), evt.GetPayloadString(event.KeyTitle), evt.GetPayloadInt(event.KeyLevels))
	case event.TypeApprovalAdvanced:
		n.Kind = NotifyAssigned
		n.Recipient = evt.GetPayloadString(event.KeyAssignedApprover)
		n.Text = fmt.Sprintf("Request %s is waiting for your approval at level %d.",
			evt.SubjectID, evt.GetPayloadInt(event.KeyNewLevel))
	case event.TypeApprovalTerminal:
		n.Kind = NotifyOutcome
		n.Recipient = evt.GetPayloadString(event.KeyOwnerID)
		n.Text = fmt.Sprintf("Your request %s was %s.", evt.SubjectID, evt.GetPayloadString(event.KeyOutcome))
	case event.TypeApprovalOverdue:
		n.Kind = NotifyOverdue
		n.Recipient = evt.GetPayloadString(event.KeyApprover)
		n.Text = fmt.Sprintf("Request %s has waited %.1f hours for your decision at level %d.",
			evt.SubjectID, evt.GetPayloadFloat(event.KeyOverdueHours), evt.GetPayloadInt(event.KeyLevel))
	default:
		return n, false
	}

	n.ID = evt.ID + ":" + n.Kind
	return n, true
}
