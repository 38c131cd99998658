package scheduler

import (
	"context"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/revokedtokens"
)

const PurgeRevokedTokensJob = "purge-revoked-tokens"

// PurgeRevokedTokens drops denylist entries whose token has expired anyway.
func PurgeRevokedTokens(repo revokedtokens.Repository, logger logging.Logger) JobFunc {
	return func(ctx context.Context) error {
		n, err := repo.PurgeExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info(ctx, "purged revoked tokens", "count", n)
		}
		return nil
	}
}
