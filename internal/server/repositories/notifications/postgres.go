package notifications

import (
	"context"
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

func scanNotification(row interface{ Scan(...any) error }) (*models.Notification, error) {
	n := &models.Notification{Sender: &models.Author{}}
	err := row.Scan(&n.ID, &n.UserID, &n.SenderID, &n.Type, &n.PostID, &n.MessageID, &n.Read, &n.CreatedAt,
		&n.Sender.Username, &n.Sender.FullName, &n.Sender.AvatarURL)
	if err != nil {
		return nil, err
	}
	n.Sender.ID = n.SenderID
	return n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	query :=
		`WITH n AS (
		   INSERT INTO notifications (user_id, sender_id, type, post_id, message_id)
		   VALUES ($1, $2, $3, $4, $5)
		   RETURNING id, user_id, sender_id, type, post_id, message_id, read, created_at
		 )
		 SELECT n.id, n.user_id, n.sender_id, n.type, n.post_id, n.message_id, n.read, n.created_at,
		        u.username, u.full_name, u.avatar_url
		 FROM n JOIN users u ON u.id = n.sender_id
		 `

	created, err := scanNotification(r.db.QueryRowContext(ctx, query, n.UserID, n.SenderID, n.Type, n.PostID, n.MessageID))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	query :=
		`SELECT n.id, n.user_id, n.sender_id, n.type, n.post_id, n.message_id, n.read, n.created_at,
		        u.username, u.full_name, u.avatar_url
		 FROM notifications n
		 JOIN users u ON u.id = n.sender_id
		 WHERE n.user_id = $1
		 ORDER BY n.created_at DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) MarkRead(ctx context.Context, id, userID string) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		if dbx.IsInvalidInput(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}
