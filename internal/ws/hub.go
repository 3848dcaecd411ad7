package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tasklane/convo/internal/metrics"
	"github.com/tasklane/convo/internal/models"
)

// Hub is the connection registry: it tracks which live connections belong
// to which rooms. The membership tables are the only shared mutable state
// on the server side; everything durable goes through the store.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	log   zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Conn]struct{}),
		log:   log,
	}
}

// Join adds the connection to a room. Idempotent: joining a room twice
// leaves exactly one membership, so a broadcast is never delivered twice
// to the same connection.
func (h *Hub) Join(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
		metrics.RoomsActive.Inc()
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave removes the connection from a room. Idempotent.
func (h *Hub) Leave(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// Drop removes the connection from every room it belongs to. Called on
// disconnect; no "user left" broadcast is sent.
func (h *Hub) Drop(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
}

func (h *Hub) leaveLocked(c *Conn, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	if _, in := members[c]; !in {
		return
	}
	delete(members, c)
	delete(c.rooms, room)
	if len(members) == 0 {
		delete(h.rooms, room)
		metrics.RoomsActive.Dec()
	}
}

// isMember reports whether the connection currently belongs to the room.
func (h *Hub) isMember(c *Conn, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, in := h.rooms[room][c]
	return in
}

// memberCount returns the current size of a room.
func (h *Hub) memberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// broadcast delivers a frame to every member of the room except the given
// connection (nil means no exclusion). Membership is snapshotted under the
// read lock; delivery happens outside it on each connection's send queue,
// dropping the frame if the queue is full.
func (h *Hub) broadcast(room string, frame []byte, except *Conn) {
	h.mu.RLock()
	members := h.rooms[room]
	snapshot := make([]*Conn, 0, len(members))
	for c := range members {
		if c != except {
			snapshot = append(snapshot, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		c.enqueue(frame)
	}
}

// NewMessage broadcasts a persisted message to its task room, including
// the sender's own connections. Implements chat.Broadcaster. Membership is
// read here, at broadcast time, not at request time.
func (h *Hub) NewMessage(msg *models.Message) {
	frame, err := marshalEvent(EventNewMessage, msg)
	if err != nil {
		h.log.Error().Err(err).Str("message_id", msg.ID).Msg("marshal new_message")
		return
	}
	h.broadcast(TaskRoom(msg.TaskID), frame, nil)
}

// Typing relays a typing indicator to the other members of the task room,
// never back to the originating connection. Fire and forget.
func (h *Hub) Typing(taskID string, userID uuid.UUID, started bool, from *Conn) {
	event := EventUserStoppedTyping
	if started {
		event = EventUserTyping
	}
	frame, err := marshalEvent(event, TypingPayload{UserID: userID, TaskID: taskID})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal typing event")
		return
	}
	h.broadcast(TaskRoom(taskID), frame, from)
	metrics.TypingEvents.Inc()
}

// Notify forwards an out-of-band notification record to all of the user's
// connections that joined their notification room.
func (h *Hub) Notify(userID uuid.UUID, record json.RawMessage) {
	frame, err := json.Marshal(Envelope{Event: EventNotification, Data: record})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal notification")
		return
	}
	h.broadcast(UserRoom(userID), frame, nil)
	metrics.NotificationsDelivered.Inc()
}
