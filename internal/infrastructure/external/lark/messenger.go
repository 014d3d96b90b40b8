package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
)

// messageCreator is the slice of the IM API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// messageSender sends one built message body to a receive id type
type messageSender interface {
	send(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error)
}

// imSender wraps the body in a create-message request
type imSender struct {
	messages messageCreator
}

func (s imSender) send(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(body).
		Build()
	return s.messages.Create(ctx, req)
}

// Messenger implements port.Messenger with Lark IM text messages
type Messenger struct {
	sender        messageSender
	receiveIDType string
	logger        *zap.Logger
}

// NewMessenger creates a Lark messenger
func NewMessenger(sdk *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		sender:        imSender{messages: sdk.GetClient().Im.Message},
		receiveIDType: sdk.ReceiveIDType(),
		logger:        logger,
	}
}

// SendText sends a plain text message to a user
func (m *Messenger) SendText(ctx context.Context, recipient, text string) error {
	if recipient == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(recipient).
		MsgType(larkim.MsgTypeText).
		Content(string(content)).
		Build()

	resp, err := m.sender.send(ctx, m.receiveIDType, body)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", recipient),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", recipient),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", recipient))
	return nil
}

var _ port.Messenger = (*Messenger)(nil)
