// Package revokedtokens declares the denylist of session tokens that were
// logged out before their natural expiry.
package revokedtokens

import (
	"context"
	"time"
)

// Repository stores revoked token ids (jti) until the token would have expired.
type Repository interface {
	// Revoke records jti. Revoking the same jti twice is not an error.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether jti is on the denylist.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// PurgeExpired removes entries whose token expired before now and returns
	// the number of rows removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
