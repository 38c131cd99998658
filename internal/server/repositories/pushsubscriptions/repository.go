// Package pushsubscriptions stores browser push endpoints per user.
package pushsubscriptions

import (
	"context"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

type Repository interface {
	// Upsert registers sub; an existing endpoint is reassigned to sub.UserID.
	Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PushSubscription, error)
	// DeleteByEndpoint removes endpoint. An empty userID matches any owner.
	DeleteByEndpoint(ctx context.Context, userID, endpoint string) error
}
