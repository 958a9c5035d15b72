package domain

import "time"

// MaxMessageLength bounds message bodies in characters.
const MaxMessageLength = 2000

// Message is a user-authored post.
type Message struct {
	ID          string
	AuthorID    string
	AuthorEmail string
	AuthorName  string
	Content     string
	CreatedAt   time.Time
}
