package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/repomanager"
)

// PushService manages the browser push subscriptions of users.
type PushService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publicKey   string
}

func NewPushService(db *sql.DB, m repomanager.RepositoryManager, publicKey string) *PushService {
	return &PushService{db: db, repomanager: m, publicKey: publicKey}
}

// PublicKey is the VAPID key browsers subscribe with; "" when push is off.
func (s *PushService) PublicKey() string { return s.publicKey }

func (s *PushService) Subscribe(ctx context.Context, userID string, sub models.PushSubscription) (*models.PushSubscription, error) {
	if s.publicKey == "" {
		return nil, fmt.Errorf("%w: web push is disabled", common.ErrorValidation)
	}
	u, err := url.Parse(sub.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint must be an https URL", common.ErrorValidation)
	}
	if strings.TrimSpace(sub.P256dh) == "" || strings.TrimSpace(sub.Auth) == "" {
		return nil, fmt.Errorf("%w: subscription keys are required", common.ErrorValidation)
	}
	sub.UserID = userID
	return s.repomanager.PushSubscriptions(s.db).Upsert(ctx, &sub)
}

func (s *PushService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", common.ErrorValidation)
	}
	return s.repomanager.PushSubscriptions(s.db).DeleteByEndpoint(ctx, userID, endpoint)
}
