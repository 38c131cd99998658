package models

import "time"

const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationMessage = "message"
)

// Notification tells UserID that SenderID did something.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SenderID  string    `json:"sender_id"`
	Type      string    `json:"type"`
	PostID    *string   `json:"post_id"`
	MessageID *string   `json:"message_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
	Sender    *Author   `json:"sender,omitempty"`
}
