package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/messaging-service/internal/events"
)

// NotificationService reacts to message events. Delivery is log-only for now.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventMessagePosted, n.handleMessagePosted)
	n.dispatcher.Subscribe(events.EventMessageDeleted, n.handleMessageDeleted)
}

func (n *NotificationService) handleMessagePosted(_ context.Context, event events.Event) error {
	n.logger.Info("MessagePosted",
		zap.String("message_id", event.MessageID),
		zap.String("author_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleMessageDeleted(_ context.Context, event events.Event) error {
	n.logger.Info("MessageDeleted",
		zap.String("message_id", event.MessageID),
		zap.String("deleted_by", event.Actor.UserID))
	return nil
}
