package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
)

// DefaultTopic carries rendered notifications
const DefaultTopic = "approval.notifications"

// Metadata keys set on every notification message
const (
	MetadataKind      = "kind"
	MetadataSubjectID = "subject_id"
)

// Config holds the in-process bus settings
type Config struct {
	Topic        string
	BufferSize   int64
	BlockPublish bool
}

// NewGoChannel creates the in-process pub/sub used for notifications. One instance
// serves as both publisher and subscriber.
func NewGoChannel(cfg Config, logger *zap.Logger) *gochannel.GoChannel {
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 256
	}
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            buffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: cfg.BlockPublish,
		},
		NewLoggerAdapter(logger),
	)
}

// Publisher implements port.NotificationPublisher on a watermill publisher
type Publisher struct {
	publisher message.Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublisher creates a notification publisher
func NewPublisher(publisher message.Publisher, topic string, logger *zap.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{publisher: publisher, topic: topic, logger: logger}
}

// Publish encodes the notification as JSON and publishes it on the topic
func (p *Publisher) Publish(ctx context.Context, n port.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataKind, n.Kind)
	msg.Metadata.Set(MetadataSubjectID, n.SubjectID)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("Failed to publish notification",
			zap.String("topic", p.topic),
			zap.String("subject_id", n.SubjectID),
			zap.Error(err))
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Decode reads a notification from a message payload
func Decode(msg *message.Message) (port.Notification, error) {
	var n port.Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		return n, fmt.Errorf("decode notification %s: %w", msg.UUID, err)
	}
	return n, nil
}

var _ port.NotificationPublisher = (*Publisher)(nil)
