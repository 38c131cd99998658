package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/dbx"
	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/metrics"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/realtime"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/academyhub/internal/storage"
)

// MessageService handles direct messages.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Adapter
	emitter     Emitter
	notifier    Notifier
	logger      logging.Logger
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, store storage.Adapter, emitter Emitter, notifier Notifier, logger logging.Logger) *MessageService {
	return &MessageService{
		db:          db,
		repomanager: m,
		storage:     store,
		emitter:     emitter,
		notifier:    notifier,
		logger:      logger.With("module", "message_service"),
	}
}

// Contacts lists everybody userID can write to.
func (s *MessageService) Contacts(ctx context.Context, userID string) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx, "", userID)
}

// Conversation returns the messages between userID and otherID, oldest first.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID string) ([]*models.Message, error) {
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, otherID); err != nil {
		return nil, err
	}
	return s.repomanager.Messages(s.db).Conversation(ctx, userID, otherID)
}

// Send stores a message, notifies the receiver and pushes it to their room.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string, attachment *Upload) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && attachment == nil {
		return nil, fmt.Errorf("%w: message needs content or media", common.ErrorValidation)
	}
	if len(content) > maxContentLength {
		return nil, fmt.Errorf("%w: message is too long", common.ErrorValidation)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", common.ErrorValidation)
	}
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	msg := &models.Message{SenderID: senderID, ReceiverID: receiverID, Content: content}

	var uploaded *storage.UploadResult
	if attachment != nil {
		res, err := s.storage.Upload(ctx, common.BucketMessageMedia, storage.ObjectName(attachment.Filename), attachment.Body)
		metrics.RecordStorage("upload", err)
		if err != nil {
			return nil, err
		}
		uploaded = res
		msg.MediaURL = &res.URL
	}

	var n *models.Notification
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Messages(tx).Create(ctx, msg)
		if err != nil {
			return err
		}
		msg = created
		n, err = s.repomanager.Notifications(tx).Create(ctx, &models.Notification{
			UserID:    receiverID,
			SenderID:  senderID,
			Type:      models.NotificationMessage,
			MessageID: &created.ID,
		})
		return err
	})
	if err != nil {
		if uploaded != nil {
			rmErr := s.storage.Remove(ctx, common.BucketMessageMedia, uploaded.Path)
			metrics.RecordStorage("remove", rmErr)
		}
		return nil, err
	}

	if err := s.emitter.Emit(ctx, realtime.UserRoom(receiverID), realtime.EventNewMessage, msg); err != nil {
		s.logger.Warn(ctx, "failed to emit message", "message_id", msg.ID, "error", err)
	}
	s.notifier.Deliver(ctx, n)
	return msg, nil
}
