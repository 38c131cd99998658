// Package posts stores feed posts together with their likes and comments.
package posts

import (
	"context"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// List returns a page of posts, newest first, as seen by viewerID.
	List(ctx context.Context, viewerID string, academyOnly bool, limit, offset int) ([]*models.PostView, error)

	// Like reports whether a new like was recorded; liking twice is a no-op.
	Like(ctx context.Context, postID, userID string) (bool, error)
	Unlike(ctx context.Context, postID, userID string) error

	AddComment(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*models.Comment, error)
}
