// Package users stores academy members and their credentials.
package users

import (
	"context"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in the generated fields. A duplicate email
	// yields common.ErrEmailTaken, a duplicate username common.ErrUsernameTaken.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// List returns users newest first whose username or full name contains
	// query (case-insensitive), leaving out excludeID.
	List(ctx context.Context, query, excludeID string) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	SetAvatar(ctx context.Context, id, avatarURL string) (*models.User, error)
}
