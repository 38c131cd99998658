package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/dbx"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	query :=
		`INSERT INTO posts (user_id, content, media_url, media_type, is_academy_post)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		post.UserID, post.Content, post.MediaURL, post.MediaType, post.IsAcademyPost).
		Scan(&post.ID, &post.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return post, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query :=
		`SELECT id, user_id, content, media_url, media_type, is_academy_post, created_at
		 FROM posts WHERE id = $1
		 `

	p := &models.Post{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.UserID, &p.Content, &p.MediaURL, &p.MediaType, &p.IsAcademyPost, &p.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidInput(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, viewerID string, academyOnly bool, limit, offset int) ([]*models.PostView, error) {
	query :=
		`SELECT p.id, p.user_id, p.content, p.media_url, p.media_type, p.is_academy_post, p.created_at,
		        u.username, u.full_name, u.avatar_url,
		        (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
		        (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		        EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id::text = $1)
		 FROM posts p
		 JOIN users u ON u.id = p.user_id
		 WHERE ($2 = FALSE OR p.is_academy_post)
		 ORDER BY p.created_at DESC
		 LIMIT $3 OFFSET $4
		 `

	rows, err := r.db.QueryContext(ctx, query, viewerID, academyOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PostView
	for rows.Next() {
		v := &models.PostView{}
		err := rows.Scan(&v.ID, &v.UserID, &v.Content, &v.MediaURL, &v.MediaType, &v.IsAcademyPost, &v.CreatedAt,
			&v.Author.Username, &v.Author.FullName, &v.Author.AvatarURL,
			&v.LikesCount, &v.CommentsCount, &v.LikedByMe)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		v.Author.ID = v.UserID
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	query :=
		`INSERT INTO likes (post_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (post_id, user_id) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, postID, userID)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) || dbx.IsInvalidInput(err) {
			return false, common.ErrorNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}

func (r *PostgresRepository) Unlike(ctx context.Context, postID, userID string) error {
	query := `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, postID, userID); err != nil {
		if dbx.IsInvalidInput(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) AddComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	query :=
		`INSERT INTO comments (post_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, comment.PostID, comment.UserID, comment.Content).
		Scan(&comment.ID, &comment.CreatedAt)

	if err != nil {
		if dbx.IsForeignKeyViolation(err) || dbx.IsInvalidInput(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	comment.Author.ID = comment.UserID
	return comment, nil
}

func (r *PostgresRepository) ListComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	query :=
		`SELECT c.id, c.post_id, c.user_id, c.content, c.created_at,
		        u.username, u.full_name, u.avatar_url
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		if dbx.IsInvalidInput(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Comment
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt,
			&c.Author.Username, &c.Author.FullName, &c.Author.AvatarURL); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.Author.ID = c.UserID
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
