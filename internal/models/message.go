package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted chat message between the two parties of a task
// thread. The server assigns ID (ULID, so lexicographic order follows
// creation order) and CreatedAt at insert time. Messages are never deleted.
type Message struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}
