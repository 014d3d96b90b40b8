package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
)

// LogMessenger delivers notifications to the log. Used when no IM channel is configured.
type LogMessenger struct {
	logger *zap.Logger
}

// NewLogMessenger creates a log-only messenger
func NewLogMessenger(logger *zap.Logger) *LogMessenger {
	return &LogMessenger{logger: logger}
}

// SendText logs the message
func (m *LogMessenger) SendText(ctx context.Context, recipient, text string) error {
	m.logger.Info("Notification delivered to log",
		zap.String("recipient", recipient),
		zap.String("text", text))
	return nil
}

var _ port.Messenger = (*LogMessenger)(nil)
