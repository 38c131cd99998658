package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/notify/webpush"
	"github.com/dmitrijs2005/academyhub/internal/server/realtime"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/repomanager"
	"github.com/mergestat/timediff"
)

const (
	BellSize    = 10
	pushTimeout = 5 * time.Second
)

// PushSender delivers a web push payload to every device of a user.
type PushSender interface {
	Send(ctx context.Context, userID string, p webpush.Payload) error
}

// NotificationView is a notification as shown in the bell.
type NotificationView struct {
	*models.Notification
	TimeAgo string `json:"time_ago"`
}

// Bell is the notification dropdown content.
type Bell struct {
	Notifications []NotificationView `json:"notifications"`
	Unread        int                `json:"unread"`
}

// NotificationService reads the bell and delivers new notifications over the
// realtime relay and web push.
type NotificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	emitter     Emitter
	push        PushSender
	logger      logging.Logger
	now         func() time.Time
}

func NewNotificationService(db *sql.DB, m repomanager.RepositoryManager, emitter Emitter, push PushSender, logger logging.Logger) *NotificationService {
	return &NotificationService{
		db:          db,
		repomanager: m,
		emitter:     emitter,
		push:        push,
		logger:      logger.With("module", "notification_service"),
		now:         time.Now,
	}
}

// Bell returns the latest notifications of userID and the unread count.
func (s *NotificationService) Bell(ctx context.Context, userID string) (*Bell, error) {
	repo := s.repomanager.Notifications(s.db)

	list, err := repo.Latest(ctx, userID, BellSize)
	if err != nil {
		return nil, err
	}
	unread, err := repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	bell := &Bell{Notifications: make([]NotificationView, 0, len(list)), Unread: unread}
	for _, n := range list {
		bell.Notifications = append(bell.Notifications, s.view(n))
	}
	return bell, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return s.repomanager.Notifications(s.db).MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repomanager.Notifications(s.db).MarkAllRead(ctx, userID)
}

// Deliver emits n to the recipient's room and sends a web push. Failures are
// logged only; the notification is already stored.
func (s *NotificationService) Deliver(ctx context.Context, n *models.Notification) {
	if n == nil {
		return
	}
	s.attachSender(ctx, n)

	if err := s.emitter.Emit(ctx, realtime.UserRoom(n.UserID), realtime.EventNewNotification, s.view(n)); err != nil {
		s.logger.Warn(ctx, "failed to emit notification", "notification_id", n.ID, "error", err)
	}

	if s.push == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := s.push.Send(pctx, n.UserID, pushPayload(n)); err != nil {
		s.logger.Warn(ctx, "web push failed", "user_id", n.UserID, "error", err)
	}
}

// attachSender fills n.Sender for notifications fresh from the repository.
func (s *NotificationService) attachSender(ctx context.Context, n *models.Notification) {
	if n.Sender != nil || n.SenderID == "" {
		return
	}
	u, err := s.repomanager.Users(s.db).GetByID(ctx, n.SenderID)
	if err != nil {
		s.logger.Debug(ctx, "notification sender lookup failed", "sender_id", n.SenderID, "error", err)
		return
	}
	n.Sender = &models.Author{ID: u.ID, Username: u.Username, FullName: u.FullName, AvatarURL: u.AvatarURL}
}

func (s *NotificationService) view(n *models.Notification) NotificationView {
	return NotificationView{
		Notification: n,
		TimeAgo:      timediff.TimeDiff(n.CreatedAt, timediff.WithStartTime(s.now())),
	}
}

func pushPayload(n *models.Notification) webpush.Payload {
	who := "Someone"
	if n.Sender != nil && n.Sender.Username != "" {
		who = n.Sender.Username
	}

	p := webpush.Payload{
		Icon: "/icons/icon-192x192.png",
		Data: map[string]any{"type": n.Type, "notificationId": n.ID},
	}
	switch n.Type {
	case models.NotificationLike:
		p.Title, p.Body = "New like", who+" liked your post"
	case models.NotificationComment:
		p.Title, p.Body = "New comment", who+" commented on your post"
	case models.NotificationMessage:
		p.Title, p.Body = "New message", who+" sent you a message"
	default:
		p.Title, p.Body = "Academy Hub", "You have a new notification"
	}
	if n.PostID != nil {
		p.Data["postId"] = *n.PostID
	}
	if n.MessageID != nil {
		p.Data["messageId"] = *n.MessageID
	}
	return p
}
