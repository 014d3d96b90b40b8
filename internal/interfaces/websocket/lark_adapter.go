// Package websocket provides WebSocket adapters for external event sources.
// This package translates protocol-specific events into application calls.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// MessageReceiveEvent is the Lark event type for messages sent to the bot
const MessageReceiveEvent = "im.message.receive_v1"

// DecisionApplier applies an approver's decision
type DecisionApplier interface {
	Decide(ctx context.Context, decision entity.Decision) (*workflow.Result, error)
}

// LarkAdapterConfig holds configuration for the Lark WebSocket adapter.
type LarkAdapterConfig struct {
	AppID     string
	AppSecret string
	// ReceiveIDType selects which sender id is taken as the actor: user_id, open_id or union_id
	ReceiveIDType string
}

// LarkAdapter listens on the Lark WebSocket for bot messages of the form
// "approve <subject-id> <level> [comments]" or "reject ..." and applies them
// as decisions on behalf of the sender. The outcome is replied to the sender.
type LarkAdapter struct {
	cfg       LarkAdapterConfig
	decisions DecisionApplier
	replies   port.Messenger
	logger    *zap.Logger

	mu      sync.RWMutex
	started bool
	cancel  context.CancelFunc
}

// NewLarkAdapter creates a new Lark WebSocket adapter. replies may be nil.
func NewLarkAdapter(cfg LarkAdapterConfig, decisions DecisionApplier, replies port.Messenger, logger *zap.Logger) *LarkAdapter {
	if cfg.ReceiveIDType == "" {
		cfg.ReceiveIDType = "user_id"
	}
	return &LarkAdapter{
		cfg:       cfg,
		decisions: decisions,
		replies:   replies,
		logger:    logger,
	}
}

// Start opens the WebSocket connection in the background
func (a *LarkAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("adapter already started")
	}

	// Empty verification token and encrypt key: not needed in WebSocket mode
	sdkDispatcher := larkdispatcher.NewEventDispatcher("", "")
	sdkDispatcher.OnCustomizedEvent(MessageReceiveEvent, a.handleLarkEvent)

	wsClient := larkws.NewClient(
		a.cfg.AppID,
		a.cfg.AppSecret,
		larkws.WithEventHandler(sdkDispatcher),
	)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.started = true

	a.logger.Info("Starting Lark WebSocket adapter", zap.String("app_id", a.cfg.AppID))

	go func() {
		if err := wsClient.Start(runCtx); err != nil && runCtx.Err() == nil {
			a.logger.Error("Lark WebSocket client error", zap.Error(err))
		}
	}()

	return nil
}

// Stop cancels the connection context. The SDK client has no explicit close
// and is not waited for.
func (a *LarkAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	a.cancel()
	a.started = false
	a.logger.Info("Lark WebSocket adapter stopped")
	return nil
}

// Name returns the worker name for identification
func (a *LarkAdapter) Name() string {
	return "LarkAdapter"
}

// IsRunning returns whether the adapter is currently running.
func (a *LarkAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

// larkMessageEvent is the part of an im.message.receive_v1 payload the adapter reads
type larkMessageEvent struct {
	Header struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID struct {
				UserID  string `json:"user_id"`
				OpenID  string `json:"open_id"`
				UnionID string `json:"union_id"`
			} `json:"sender_id"`
		} `json:"sender"`
		Message struct {
			MessageType string `json:"message_type"`
			Content     string `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

func (e larkMessageEvent) senderID(receiveIDType string) string {
	ids := e.Event.Sender.SenderID
	switch receiveIDType {
	case "open_id":
		return ids.OpenID
	case "union_id":
		return ids.UnionID
	default:
		return ids.UserID
	}
}

// handleLarkEvent is called by the Lark SDK for every bot message.
// Messages that are not decision commands are ignored.
func (a *LarkAdapter) handleLarkEvent(ctx context.Context, evt *larkevent.EventReq) error {
	var msg larkMessageEvent
	if err := json.Unmarshal(evt.Body, &msg); err != nil {
		a.logger.Error("Failed to parse Lark event payload", zap.Error(err))
		return fmt.Errorf("failed to parse event payload: %w", err)
	}
	if msg.Event.Message.MessageType != "text" {
		return nil
	}

	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(msg.Event.Message.Content), &content); err != nil {
		a.logger.Warn("Unreadable text message content", zap.String("event_id", msg.Header.EventID))
		return nil
	}

	actor := msg.senderID(a.cfg.ReceiveIDType)
	decision, ok, err := ParseDecisionCommand(content.Text)
	if !ok {
		return nil
	}
	if err != nil || actor == "" {
		if err == nil {
			err = fmt.Errorf("sender has no %s", a.cfg.ReceiveIDType)
		}
		a.reply(ctx, actor, fmt.Sprintf("Could not read your decision: %v", err))
		return nil
	}
	decision.ActorID = actor

	res, err := a.decisions.Decide(ctx, decision)
	if err != nil {
		a.logger.Info("Lark decision rejected",
			zap.String("subject_id", decision.SubjectID),
			zap.String("actor_id", actor),
			zap.Error(err))
		a.reply(ctx, actor, fmt.Sprintf("Decision on %s level %d failed: %v", decision.SubjectID, decision.Level, err))
		return nil
	}

	a.logger.Info("Lark decision applied",
		zap.String("subject_id", decision.SubjectID),
		zap.String("actor_id", actor),
		zap.String("action", string(decision.Action)),
		zap.String("status", string(res.Projection.Status)))
	a.reply(ctx, actor, fmt.Sprintf("Recorded: %s %s level %d. Request is now %s.",
		decision.Action, decision.SubjectID, decision.Level, res.Projection.Status))
	return nil
}

func (a *LarkAdapter) reply(ctx context.Context, recipient, text string) {
	if a.replies == nil || recipient == "" {
		return
	}
	if err := a.replies.SendText(ctx, recipient, text); err != nil {
		a.logger.Warn("Failed to reply to Lark sender", zap.String("recipient", recipient), zap.Error(err))
	}
}

// ParseDecisionCommand reads "approve|reject <subject-id> <level> [comments]".
// ok is false when the text is not a decision command at all; err reports a
// malformed command. Mention tokens ("@_user_1") are skipped.
func ParseDecisionCommand(text string) (decision entity.Decision, ok bool, err error) {
	var fields []string
	for _, f := range strings.Fields(text) {
		if strings.HasPrefix(f, "@_") {
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return entity.Decision{}, false, nil
	}

	action := entity.Action(strings.ToLower(fields[0]))
	if action != entity.ActionApprove && action != entity.ActionReject {
		return entity.Decision{}, false, nil
	}
	if len(fields) < 3 {
		return entity.Decision{}, true, fmt.Errorf("usage: %s <subject-id> <level> [comments]", action)
	}

	level, convErr := strconv.Atoi(fields[2])
	if convErr != nil || level < 1 {
		return entity.Decision{}, true, fmt.Errorf("level %q is not a positive number", fields[2])
	}

	return entity.Decision{
		SubjectID: fields[1],
		Level:     level,
		Action:    action,
		Comments:  strings.Join(fields[3:], " "),
	}, true, nil
}
