package models

import "time"

// Message is a direct message between two users.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	MediaURL   *string   `json:"media_url"`
	CreatedAt  time.Time `json:"created_at"`
}
