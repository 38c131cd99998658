package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/dbx"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

// Unique constraint names from the users migration.
const (
	constraintEmail    = "users_email_key"
	constraintUsername = "users_username_key"
)

const userColumns = `id, email, username, password_hash, full_name, avatar_url, age, team, position, is_parent, role, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.AvatarURL,
		&u.Age, &u.Team, &u.Position, &u.IsParent, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create relies on the unique constraints alone, so two concurrent
// registrations for the same email cannot both succeed.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Role == "" {
		user.Role = common.RoleUser
	}

	query :=
		`INSERT INTO users (email, username, password_hash, full_name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, is_parent, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, user.FullName, user.Role).
		Scan(&user.ID, &user.IsParent, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			switch constraint {
			case constraintEmail:
				return nil, common.ErrEmailTaken
			case constraintUsername:
				return nil, common.ErrUsernameTaken
			}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.queryOne(ctx, query, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresRepository) List(ctx context.Context, query, excludeID string) ([]*models.User, error) {
	var (
		where []string
		args  []any
	)

	if q := strings.TrimSpace(query); q != "" {
		args = append(args, dbx.ContainsPattern(q))
		where = append(where, fmt.Sprintf("(username ILIKE $%d OR full_name ILIKE $%d)", len(args), len(args)))
	}
	if excludeID != "" {
		args = append(args, excludeID)
		where = append(where, fmt.Sprintf("id::text <> $%d", len(args)))
	}

	sqlQuery := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		sqlQuery += ` WHERE ` + strings.Join(where, " AND ")
	}
	sqlQuery += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	query :=
		`UPDATE users SET
		   full_name = COALESCE($2, full_name),
		   age = COALESCE($3, age),
		   team = COALESCE($4, team),
		   position = COALESCE($5, position),
		   is_parent = COALESCE($6, is_parent),
		   updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return r.queryOne(ctx, query, id, upd.FullName, upd.Age, upd.Team, upd.Position, upd.IsParent)
}

func (r *PostgresRepository) SetAvatar(ctx context.Context, id, avatarURL string) (*models.User, error) {
	query :=
		`UPDATE users SET avatar_url = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return r.queryOne(ctx, query, id, avatarURL)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidInput(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}
