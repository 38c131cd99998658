// Package messages stores direct messages between users.
package messages

import (
	"context"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)
	// Conversation returns the messages exchanged between a and b, oldest first.
	Conversation(ctx context.Context, a, b string) ([]*models.Message, error)
}
