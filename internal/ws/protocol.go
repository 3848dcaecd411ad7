// Package ws implements the live transport: token-authenticated websocket
// connections, task and user rooms, and the event relay between room
// members.
package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Server-bound events.
const (
	EventJoinTask          = "join_task"
	EventLeaveTask         = "leave_task"
	EventJoinNotifications = "join_notifications"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
)

// Client-bound events.
const (
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventNotification      = "notification"
	EventError             = "error"
)

// Envelope frames every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomPayload is the data of join_task and leave_task.
type RoomPayload struct {
	TaskID string `json:"task_id"`
}

// TypingPayload is the data of typing_start/typing_stop (server-bound) and
// user_typing/user_stopped_typing (client-bound).
type TypingPayload struct {
	UserID uuid.UUID `json:"user_id,omitempty"`
	TaskID string    `json:"task_id"`
}

// ErrorPayload is the data of an error event, sent only to the connection
// whose request was rejected.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// TaskRoom names the room carrying live events for one task thread.
func TaskRoom(taskID string) string {
	return "task_" + taskID
}

// UserRoom names the per-user notification room.
func UserRoom(userID uuid.UUID) string {
	return "user_" + userID.String()
}

// marshalEvent frames a payload into an envelope ready for the wire.
func marshalEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
