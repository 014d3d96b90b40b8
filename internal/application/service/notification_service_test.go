package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/event"
)

type mockPublisher struct {
	published []port.Notification
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, n port.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, n)
	return nil
}

func newTestNotificationService(pub port.NotificationPublisher) *notificationServiceImpl {
	s := NewNotificationService(pub, &mockLogger{}).(*notificationServiceImpl)
	s.now = fixedNow
	return s
}

func TestNotificationService_Handle(t *testing.T) {
	tests := []struct {
		name          string
		evt           *event.Event
		wantKind      string
		wantRecipient string
		wantText      string
	}{
		{
			name:          "submitted goes to owner",
			evt:           event.NewSubjectSubmitted("s-1", "emp-1", "travel", "Beijing trip", 2),
			wantKind:      NotifySubmitted,
			wantRecipient: "emp-1",
			wantText:      "2 level(s)",
		},
		{
			name:          "advanced goes to new approver",
			evt:           event.NewApprovalAdvanced("s-1", 2, "dept-head-1", "corr"),
			wantKind:      NotifyAssigned,
			wantRecipient: "dept-head-1",
			wantText:      "level 2",
		},
		{
			name:          "terminal goes to owner",
			evt:           event.NewApprovalTerminal("s-1", "approved", "emp-1", "corr"),
			wantKind:      NotifyOutcome,
			wantRecipient: "emp-1",
			wantText:      "was approved",
		},
		{
			name:          "overdue goes to approver",
			evt:           event.NewApprovalOverdue("s-1", 1, "mgr-1", 50.5),
			wantKind:      NotifyOverdue,
			wantRecipient: "mgr-1",
			wantText:      "50.5 hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			svc := newTestNotificationService(pub)

			require.NoError(t, svc.Handle(context.Background(), tt.evt))
			require.Len(t, pub.published, 1)

			n := pub.published[0]
			assert.Equal(t, tt.wantKind, n.Kind)
			assert.Equal(t, tt.wantRecipient, n.Recipient)
			assert.Equal(t, "s-1", n.SubjectID)
			assert.True(t, strings.Contains(n.Text, tt.wantText), "text %q should contain %q", n.Text, tt.wantText)
			assert.Equal(t, fixedNow(), n.CreatedAt)
			assert.NotEmpty(t, n.ID)
		})
	}
}

func TestNotificationService_SkipsMissingRecipient(t *testing.T) {
	pub := &mockPublisher{}
	svc := newTestNotificationService(pub)

	require.NoError(t, svc.Handle(context.Background(), event.NewApprovalAdvanced("s-1", 2, "", "corr")))
	assert.Empty(t, pub.published)
}

func TestNotificationService_PublishError(t *testing.T) {
	svc := newTestNotificationService(&mockPublisher{err: errors.New("broker closed")})

	err := svc.Handle(context.Background(), event.NewApprovalTerminal("s-1", "rejected", "emp-1", "c"))
	assert.Error(t, err)
}

func TestNotificationService_Register(t *testing.T) {
	pub := &mockPublisher{}
	svc := newTestNotificationService(pub)
	d := dispatcher.NewDispatcher()
	svc.Register(d)

	for _, typ := range []event.Type{
		event.TypeSubjectSubmitted,
		event.TypeApprovalAdvanced,
		event.TypeApprovalTerminal,
		event.TypeApprovalOverdue,
	} {
		assert.Len(t, d.ListHandlers(typ), 1, typ)
	}

	require.NoError(t, d.Dispatch(context.Background(), event.NewApprovalTerminal("s-9", "approved", "emp-2", "c")))
	require.Len(t, pub.published, 1)
	assert.Equal(t, "emp-2", pub.published[0].Recipient)
}
