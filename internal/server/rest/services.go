package rest

import (
	"context"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/services"
)

// The handlers depend on these views of the services.

type UserService interface {
	Register(ctx context.Context, email, password, username string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	ResolveSession(ctx context.Context, token string) (*services.Session, error)
	Logout(ctx context.Context, token string) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, query, excludeID string) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	SetAvatar(ctx context.Context, id string, up services.Upload) (*models.User, error)
}

type PostService interface {
	Feed(ctx context.Context, viewerID string, page int, academyOnly bool) ([]*models.PostView, error)
	Create(ctx context.Context, author *models.User, in services.NewPost) (*models.Post, error)
	Like(ctx context.Context, postID, userID string) error
	Unlike(ctx context.Context, postID, userID string) error
	Comments(ctx context.Context, postID string) ([]*models.Comment, error)
	AddComment(ctx context.Context, postID, userID, content string) (*models.Comment, error)
}

type MessageService interface {
	Contacts(ctx context.Context, userID string) ([]*models.User, error)
	Conversation(ctx context.Context, userID, otherID string) ([]*models.Message, error)
	Send(ctx context.Context, senderID, receiverID, content string, attachment *services.Upload) (*models.Message, error)
}

type NotificationService interface {
	Bell(ctx context.Context, userID string) (*services.Bell, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type PushService interface {
	PublicKey() string
	Subscribe(ctx context.Context, userID string, sub models.PushSubscription) (*models.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID, endpoint string) error
}
