package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/messaging-service/internal/domain"
	"github.com/spec-kit/messaging-service/internal/events"
	"github.com/spec-kit/messaging-service/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	previewLength    = 80
)

var (
	ErrEmptyContent   = errors.New("message content is required")
	ErrContentTooLong = errors.New("message content too long")
)

// MessageService manages posting and moderation of messages.
type MessageService struct {
	messages   repository.MessageRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewMessageService constructs service.
func NewMessageService(messages repository.MessageRepository, dispatcher events.Dispatcher, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{messages: messages, dispatcher: dispatcher, logger: logger}
}

// Post stores a message authored by identity. The author is always taken
// from the verified identity.
func (s *MessageService) Post(ctx context.Context, identity domain.Identity, content, authorName string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return nil, ErrContentTooLong
	}

	msg := &domain.Message{
		ID:          uuid.NewString(),
		AuthorID:    identity.ID,
		AuthorEmail: identity.Email,
		AuthorName:  strings.TrimSpace(authorName),
		Content:     content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventMessagePosted,
		MessageID: msg.ID,
		Actor:     actorOf(identity),
		Payload: events.MessagePostedPayload{
			AuthorName:  msg.AuthorName,
			BodyPreview: preview(msg.Content),
		},
	})
	return msg, nil
}

// List returns the most recent messages, newest first. limit is clamped to
// [1, MaxListLimit]; zero or negative uses DefaultListLimit.
func (s *MessageService) List(ctx context.Context, limit int) ([]domain.Message, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.messages.ListRecent(ctx, limit)
}

// Delete removes a message on behalf of actor.
func (s *MessageService) Delete(ctx context.Context, actor domain.Identity, id string) error {
	if err := s.messages.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventMessageDeleted,
		MessageID: id,
		Actor:     actorOf(actor),
		Payload:   events.MessageDeletedPayload{},
	})
	return nil
}

func (s *MessageService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func actorOf(identity domain.Identity) events.Actor {
	return events.Actor{UserID: identity.ID, Email: identity.Email, Role: string(identity.Role)}
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	return string([]rune(content)[:previewLength]) + "..."
}
