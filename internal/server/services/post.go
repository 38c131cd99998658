package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/dbx"
	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/media"
	"github.com/dmitrijs2005/academyhub/internal/server/metrics"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/academyhub/internal/storage"
)

const (
	FeedPageSize     = 20
	maxContentLength = 5000
)

// NewPost is the input of PostService.Create.
type NewPost struct {
	Content string
	Academy bool
	Media   *Upload
}

// PostService runs the feed: posts, likes and comments.
type PostService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Adapter
	notifier    Notifier
	logger      logging.Logger
}

func NewPostService(db *sql.DB, m repomanager.RepositoryManager, store storage.Adapter, notifier Notifier, logger logging.Logger) *PostService {
	return &PostService{
		db:          db,
		repomanager: m,
		storage:     store,
		notifier:    notifier,
		logger:      logger.With("module", "post_service"),
	}
}

// Feed returns page (1-based) of the feed as seen by viewerID.
func (s *PostService) Feed(ctx context.Context, viewerID string, page int, academyOnly bool) ([]*models.PostView, error) {
	if page < 1 {
		page = 1
	}
	return s.repomanager.Posts(s.db).List(ctx, viewerID, academyOnly, FeedPageSize, (page-1)*FeedPageSize)
}

// Create publishes a post by author. Academy posts are reserved for staff.
func (s *PostService) Create(ctx context.Context, author *models.User, in NewPost) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.Media == nil {
		return nil, fmt.Errorf("%w: post needs content or media", common.ErrorValidation)
	}
	if len(content) > maxContentLength {
		return nil, fmt.Errorf("%w: content is too long", common.ErrorValidation)
	}
	if in.Academy && !common.IsStaffRole(author.Role) {
		return nil, common.ErrorForbidden
	}

	post := &models.Post{UserID: author.ID, Content: content, IsAcademyPost: in.Academy}

	var uploaded *storage.UploadResult
	if in.Media != nil {
		res, err := s.storage.Upload(ctx, common.BucketPostMedia, storage.ObjectName(in.Media.Filename), in.Media.Body)
		metrics.RecordStorage("upload", err)
		if err != nil {
			return nil, err
		}
		uploaded = res
		kind := media.Kind(in.Media.Filename, in.Media.ContentType)
		post.MediaURL = &res.URL
		post.MediaType = &kind
	}

	created, err := s.repomanager.Posts(s.db).Create(ctx, post)
	if err != nil {
		if uploaded != nil {
			rmErr := s.storage.Remove(ctx, common.BucketPostMedia, uploaded.Path)
			metrics.RecordStorage("remove", rmErr)
		}
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	return created, nil
}

// Like records userID's like of postID and notifies the author, unless the
// author liked their own post or the like already existed.
func (s *PostService) Like(ctx context.Context, postID, userID string) error {
	var n *models.Notification
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		posts := s.repomanager.Posts(tx)
		post, err := posts.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		created, err := posts.Like(ctx, postID, userID)
		if err != nil {
			return err
		}
		if !created || post.UserID == userID {
			return nil
		}
		n, err = s.repomanager.Notifications(tx).Create(ctx, &models.Notification{
			UserID:   post.UserID,
			SenderID: userID,
			Type:     models.NotificationLike,
			PostID:   &post.ID,
		})
		return err
	})
	if err != nil {
		return err
	}

	if n != nil {
		s.notifier.Deliver(ctx, n)
	}
	return nil
}

func (s *PostService) Unlike(ctx context.Context, postID, userID string) error {
	return s.repomanager.Posts(s.db).Unlike(ctx, postID, userID)
}

// Comments lists the comments of postID, oldest first.
func (s *PostService) Comments(ctx context.Context, postID string) ([]*models.Comment, error) {
	repo := s.repomanager.Posts(s.db)
	if _, err := repo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return repo.ListComments(ctx, postID)
}

// AddComment stores a comment and notifies the post author.
func (s *PostService) AddComment(ctx context.Context, postID, userID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment is empty", common.ErrorValidation)
	}
	if len(content) > maxContentLength {
		return nil, fmt.Errorf("%w: comment is too long", common.ErrorValidation)
	}

	var (
		comment *models.Comment
		n       *models.Notification
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		posts := s.repomanager.Posts(tx)
		post, err := posts.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		comment, err = posts.AddComment(ctx, &models.Comment{PostID: postID, UserID: userID, Content: content})
		if err != nil {
			return err
		}
		if post.UserID == userID {
			return nil
		}
		n, err = s.repomanager.Notifications(tx).Create(ctx, &models.Notification{
			UserID:   post.UserID,
			SenderID: userID,
			Type:     models.NotificationComment,
			PostID:   &post.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if n != nil {
		s.notifier.Deliver(ctx, n)
	}
	return comment, nil
}
