package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/tasklane/convo/internal/models"
)

// Store defines the persistence surface the conversation core consumes.
// Both PostgresStore and SQLiteStore implement this interface. Users,
// tasks and applications are owned by the marketplace CRUD layer; this
// service only reads the facts it needs (identity resolution and
// authorization) and owns the messages table.
//
// Lookup methods return (nil, nil) when the record does not exist.
type Store interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Identity
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Authorization facts, re-derived on every send/list/join
	GetTask(ctx context.Context, taskID string) (*models.TaskRef, error)
	HasApplication(ctx context.Context, taskID string, userID uuid.UUID) (bool, error)

	// Messages
	InsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListTaskMessages(ctx context.Context, taskID string) ([]models.Message, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	MarkMessageRead(ctx context.Context, id string) (*models.Message, error)
}
