package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/infrastructure/messaging"
)

// NotificationRelayConfig holds configuration for the relay
type NotificationRelayConfig struct {
	Topic       string
	SendTimeout time.Duration
}

// NotificationRelay consumes rendered notifications from the bus and hands them to a Messenger.
// Delivery failures are logged and acked; workflow state never depends on them.
type NotificationRelay struct {
	config     NotificationRelayConfig
	subscriber message.Subscriber
	messenger  port.Messenger
	logger     *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	delivered int
	failed    int
}

// NewNotificationRelay creates a notification relay
func NewNotificationRelay(
	config NotificationRelayConfig,
	subscriber message.Subscriber,
	messenger port.Messenger,
	logger *zap.Logger,
) *NotificationRelay {
	if config.Topic == "" {
		config.Topic = messaging.DefaultTopic
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}
	return &NotificationRelay{
		config:     config,
		subscriber: subscriber,
		messenger:  messenger,
		logger:     logger,
	}
}

// Start subscribes to the topic and begins delivering
func (w *NotificationRelay) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("notification relay already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	messages, err := w.subscriber.Subscribe(runCtx, w.config.Topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", w.config.Topic, err)
	}

	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("NotificationRelay started", zap.String("topic", w.config.Topic))
	go w.loop(runCtx, messages, w.done)
	return nil
}

// Stop cancels the subscription and waits for the loop to exit
func (w *NotificationRelay) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	delivered, failed := w.Stats()
	w.logger.Info("NotificationRelay stopped",
		zap.Int("delivered", delivered),
		zap.Int("failed", failed))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationRelay) Name() string {
	return "NotificationRelay"
}

// Stats returns delivered and failed counts
func (w *NotificationRelay) Stats() (delivered, failed int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.delivered, w.failed
}

func (w *NotificationRelay) loop(ctx context.Context, messages <-chan *message.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			w.deliver(ctx, msg)
			msg.Ack()
		}
	}
}

func (w *NotificationRelay) deliver(ctx context.Context, msg *message.Message) {
	n, err := messaging.Decode(msg)
	if err != nil {
		w.record(false)
		w.logger.Error("Dropping undecodable notification", zap.String("message_id", msg.UUID), zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	defer cancel()

	if err := w.messenger.SendText(sendCtx, n.Recipient, n.Text); err != nil {
		w.record(false)
		w.logger.Warn("Failed to deliver notification",
			zap.String("subject_id", n.SubjectID),
			zap.String("recipient", n.Recipient),
			zap.String("kind", n.Kind),
			zap.Error(err))
		return
	}
	w.record(true)
}

func (w *NotificationRelay) record(ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ok {
		w.delivered++
	} else {
		w.failed++
	}
}
