package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventMessagePosted  EventType = "message_posted"
	EventMessageDeleted EventType = "message_deleted"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	MessageID string      `json:"message_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// MessagePostedPayload payload.
type MessagePostedPayload struct {
	AuthorName  string `json:"author_name,omitempty"`
	BodyPreview string `json:"body_preview"`
}

// MessageDeletedPayload payload.
type MessageDeletedPayload struct {
	AuthorID string `json:"author_id,omitempty"`
}
