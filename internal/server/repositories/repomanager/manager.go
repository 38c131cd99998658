package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/academyhub/internal/dbx"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/messages"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/posts"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/pushsubscriptions"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so that services can
// run several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Posts(db dbx.DBTX) posts.Repository
	Messages(db dbx.DBTX) messages.Repository
	Notifications(db dbx.DBTX) notifications.Repository
	RevokedTokens(db dbx.DBTX) revokedtokens.Repository
	PushSubscriptions(db dbx.DBTX) pushsubscriptions.Repository
}
