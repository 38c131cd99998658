package pushsubscriptions

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/academyhub/internal/dbx"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	query :=
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, user_agent)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (endpoint) DO UPDATE
		   SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh,
		       auth = EXCLUDED.auth, user_agent = EXCLUDED.user_agent
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.UserAgent).
		Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return sub, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.PushSubscription, error) {
	query :=
		`SELECT id, user_id, endpoint, p256dh, auth, user_agent, created_at
		 FROM push_subscriptions
		 WHERE user_id = $1
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PushSubscription
	for rows.Next() {
		s := &models.PushSubscription{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.UserAgent, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) DeleteByEndpoint(ctx context.Context, userID, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE endpoint = $1 AND ($2 = '' OR user_id::text = $2)`

	if _, err := r.db.ExecContext(ctx, query, endpoint, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
