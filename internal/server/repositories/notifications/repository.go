// Package notifications stores the notification bell entries.
package notifications

import (
	"context"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

type Repository interface {
	// Create inserts n and returns it with the sender filled in.
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	Latest(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	// MarkRead only touches notifications addressed to userID.
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
