// Package services contains the server-side business logic. Services take a
// *sql.DB and a repomanager.RepositoryManager and bind repositories per call,
// so that a unit of work can run several of them in one transaction.
package services

import (
	"context"
	"io"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Emitter pushes an event to a realtime room.
type Emitter interface {
	Emit(ctx context.Context, room, event string, data any) error
}

// Notifier delivers a stored notification to its recipient.
type Notifier interface {
	Deliver(ctx context.Context, n *models.Notification)
}
