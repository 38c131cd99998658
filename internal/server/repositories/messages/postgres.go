package messages

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

func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query :=
		`INSERT INTO messages (sender_id, receiver_id, content, media_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.Content, msg.MediaURL).
		Scan(&msg.ID, &msg.CreatedAt)

	if err != nil {
		if dbx.IsForeignKeyViolation(err) || dbx.IsInvalidInput(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

func (r *PostgresRepository) Conversation(ctx context.Context, a, b string) ([]*models.Message, error) {
	query :=
		`SELECT id, sender_id, receiver_id, content, media_url, created_at
		 FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY created_at ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, a, b)
	if err != nil {
		if dbx.IsInvalidInput(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.MediaURL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
