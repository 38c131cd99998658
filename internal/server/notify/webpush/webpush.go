// Package webpush delivers notifications to the browser push endpoints a
// user registered. Endpoints the push service reports as gone (404, 410)
// are deleted.
package webpush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/config"
	"github.com/dmitrijs2005/academyhub/internal/server/metrics"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/pushsubscriptions"
)

// Firefox on Android rejects larger records.
const recordSize = 3000

// Payload is what the service worker receives.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

type sendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, o *webpush.Options) (*http.Response, error)

type Sender struct {
	cfg    config.WebPushConfig
	subs   pushsubscriptions.Repository
	send   sendFunc
	logger logging.Logger
}

func NewSender(cfg config.WebPushConfig, subs pushsubscriptions.Repository, logger logging.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		subs:   subs,
		send:   webpush.SendNotificationWithContext,
		logger: logger.With("module", "webpush"),
	}
}

// GenerateVAPIDKeys returns a fresh key pair for the webpush config.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}

func (s *Sender) Enabled() bool { return s.cfg.Enabled }

// PublicKey is the VAPID application server key browsers subscribe with.
func (s *Sender) PublicKey() string { return s.cfg.PublicKey }

// Send pushes p to every subscription of userID. It succeeds when at least
// one delivery succeeded or the user has nothing to deliver to.
func (s *Sender) Send(ctx context.Context, userID string, p Payload) error {
	if !s.cfg.Enabled {
		return nil
	}

	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	var errs []error
	delivered := 0
	for _, sub := range subs {
		err := s.deliver(ctx, sub, body)
		if err == nil {
			delivered++
			continue
		}
		errs = append(errs, err)
	}

	if delivered > 0 {
		return nil
	}
	return errors.Join(errs...)
}

func (s *Sender) deliver(ctx context.Context, sub *models.PushSubscription, body []byte) error {
	resp, err := s.send(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             s.cfg.TTL,
		RecordSize:      recordSize,
	})
	if err != nil {
		metrics.RecordPush("failed")
		return fmt.Errorf("push to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.RecordPush("sent")
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		metrics.RecordPush("expired")
		if err := s.subs.DeleteByEndpoint(ctx, sub.UserID, sub.Endpoint); err != nil {
			s.logger.Warn(ctx, "failed to drop expired push subscription", "endpoint", sub.Endpoint, "error", err)
		} else {
			s.logger.Info(ctx, "dropped expired push subscription", "user_id", sub.UserID)
		}
		return fmt.Errorf("push endpoint gone (%d)", resp.StatusCode)
	default:
		metrics.RecordPush("failed")
		return fmt.Errorf("push service answered %d", resp.StatusCode)
	}
}
