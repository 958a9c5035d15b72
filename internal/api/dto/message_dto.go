package dto

import (
	"time"

	"github.com/spec-kit/messaging-service/internal/domain"
)

// PostMessageRequest payload for POST /postMessage. Author identity comes
// from the token, never from the body.
type PostMessageRequest struct {
	Content    string `json:"content"`
	AuthorName string `json:"authorName"`
}

// MessageView is the wire form of a message.
type MessageView struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"authorId"`
	AuthorEmail string    `json:"authorEmail"`
	AuthorName  string    `json:"authorName,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewMessageView converts a domain message.
func NewMessageView(m domain.Message) MessageView {
	return MessageView{
		ID:          m.ID,
		AuthorID:    m.AuthorID,
		AuthorEmail: m.AuthorEmail,
		AuthorName:  m.AuthorName,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

// NewMessageViews converts a slice of domain messages.
func NewMessageViews(msgs []domain.Message) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, NewMessageView(m))
	}
	return views
}
