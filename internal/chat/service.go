// Package chat implements the conversation protocol: validated,
// authorized message sends that persist before they broadcast, read
// state, and the conversation read paths.
package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tasklane/convo/internal/metrics"
	"github.com/tasklane/convo/internal/models"
	"github.com/tasklane/convo/internal/store"
)

// maxContentChars caps message content length, counted in runes after
// trimming.
const maxContentChars = 1000

// Broadcaster delivers a persisted message to the live members of its task
// room. The hub implements it; tests substitute a recorder.
type Broadcaster interface {
	NewMessage(msg *models.Message)
}

// Service is the conversation protocol handler.
type Service struct {
	store store.Store
	live  Broadcaster
	log   zerolog.Logger
}

// NewService creates a Service backed by the given store and broadcaster.
func NewService(st store.Store, live Broadcaster, log zerolog.Logger) *Service {
	return &Service{store: st, live: live, log: log}
}

// Authorize reports whether the user has standing on the task: they must
// be the task's client or have an application record for it. The facts are
// re-derived from the store on every call, never cached.
func (s *Service) Authorize(ctx context.Context, userID uuid.UUID, taskID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return ErrNotFound
	}
	if task.ClientID == userID {
		return nil
	}
	applied, err := s.store.HasApplication(ctx, taskID, userID)
	if err != nil {
		return fmt.Errorf("check application: %w", err)
	}
	if !applied {
		return ErrUnauthorized
	}
	return nil
}

// SendMessage validates and authorizes a send, persists the message, then
// broadcasts it to the task room and returns the persisted row to the
// caller. On any rejection nothing is persisted and nothing is broadcast.
//
// No lock is held across the store call; room membership is read inside
// the broadcaster after persistence completes, so a member who leaves in
// that window simply misses the message.
func (s *Service) SendMessage(ctx context.Context, sender *models.User, taskID string, receiverID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if taskID == "" {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: task_id is required", ErrValidation)
	}
	if receiverID == uuid.Nil {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: receiver_id is required", ErrValidation)
	}
	if content == "" || utf8.RuneCountInString(content) > maxContentChars {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: content must be 1-%d characters", ErrValidation, maxContentChars)
	}

	if err := s.Authorize(ctx, sender.ID, taskID); err != nil {
		metrics.MessagesRejected.WithLabelValues("authorization").Inc()
		return nil, err
	}

	receiver, err := s.store.GetUserByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("resolve receiver: %w", err)
	}
	if receiver == nil {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: unknown receiver", ErrValidation)
	}

	msg := &models.Message{
		TaskID:     taskID,
		SenderID:   sender.ID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	s.live.NewMessage(msg)
	metrics.MessagesSent.Inc()

	s.log.Debug().
		Str("message_id", msg.ID).
		Str("task_id", taskID).
		Stringer("sender_id", sender.ID).
		Msg("message sent")

	return msg, nil
}

// MarkRead sets is_read on a message. Only the receiver may do this; no
// broadcast is emitted.
func (s *Service) MarkRead(ctx context.Context, caller uuid.UUID, messageID string) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	if msg == nil {
		return nil, ErrNotFound
	}
	if msg.ReceiverID != caller {
		return nil, ErrUnauthorized
	}
	updated, err := s.store.MarkMessageRead(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

// ListConversations returns the caller's inbox: the latest message per
// task thread, newest activity first. This is an O(messages-for-user)
// scan with no pagination; fine at current scale.
func (s *Service) ListConversations(ctx context.Context, caller uuid.UUID) ([]models.ConversationSummary, error) {
	summaries, err := s.store.ListConversations(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return summaries, nil
}

// ListMessages returns the full thread for a task, oldest first. Requires
// the same standing as sending.
func (s *Service) ListMessages(ctx context.Context, caller uuid.UUID, taskID string) ([]models.Message, error) {
	if err := s.Authorize(ctx, caller, taskID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListTaskMessages(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
