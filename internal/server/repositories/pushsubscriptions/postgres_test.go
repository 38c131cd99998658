package pushsubscriptions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestUpsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+push_subscriptions.*ON\s+CONFLICT\s+\(endpoint\)\s+DO\s+UPDATE.*RETURNING\s+id,\s*created_at`).
		WithArgs("u-1", "https://push.example/1", "key", "secret", "firefox").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("s-1", now))

	got, err := repo.Upsert(context.Background(), &models.PushSubscription{
		UserID: "u-1", Endpoint: "https://push.example/1", P256dh: "key", Auth: "secret", UserAgent: "firefox",
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.ID)
}

func TestListByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+push_subscriptions\s+WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "endpoint", "p256dh", "auth", "user_agent", "created_at"}).
			AddRow("s-1", "u-1", "https://push.example/1", "k", "a", "", now))

	got, err := repo.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://push.example/1", got[0].Endpoint)
}

func TestDeleteByEndpoint(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+push_subscriptions\s+WHERE\s+endpoint\s*=\s*\$1`
	mock.ExpectExec(q).WithArgs("https://push.example/1", "").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteByEndpoint(context.Background(), "", "https://push.example/1"))

	mock.ExpectExec(q).WithArgs("https://push.example/1", "u-1").WillReturnError(errors.New("db err"))
	assert.Error(t, repo.DeleteByEndpoint(context.Background(), "u-1", "https://push.example/1"))
}
