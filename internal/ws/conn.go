package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/tasklane/convo/internal/metrics"
	"github.com/tasklane/convo/internal/models"
)

// sendQueueSize bounds the per-connection outbound queue. A slow reader
// loses frames rather than stalling the broadcaster.
const sendQueueSize = 32

// Authorizer answers whether a user has standing on a task. The chat
// service implements it; room joins are gated on it.
type Authorizer interface {
	Authorize(ctx context.Context, userID uuid.UUID, taskID string) error
}

// Conn is one live websocket connection, bound to the identity resolved at
// handshake time for its whole lifetime.
type Conn struct {
	user models.User
	sock *websocket.Conn
	hub  *Hub
	auth Authorizer
	log  zerolog.Logger

	send chan []byte

	// rooms this connection belongs to; guarded by hub.mu.
	rooms map[string]struct{}
}

func newConn(user models.User, sock *websocket.Conn, hub *Hub, auth Authorizer, log zerolog.Logger) *Conn {
	return &Conn{
		user:  user,
		sock:  sock,
		hub:   hub,
		auth:  auth,
		log:   log,
		send:  make(chan []byte, sendQueueSize),
		rooms: make(map[string]struct{}),
	}
}

// enqueue hands a frame to the write loop without blocking the caller.
func (c *Conn) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		metrics.BroadcastsDropped.Inc()
	}
}

// writeLoop drains the send queue onto the socket until the context ends.
func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case frame := <-c.send:
			if err := c.sock.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readLoop processes server-bound events one at a time, which is what
// keeps events from a single connection ordered.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		typ, data, err := c.sock.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		c.handleEvent(ctx, data)
	}
}

// handleEvent dispatches one server-bound envelope.
func (c *Conn) handleEvent(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError("", "malformed event")
		return
	}

	switch env.Event {
	case EventJoinTask:
		var p RoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.TaskID == "" {
			c.sendError(env.Event, "task_id is required")
			return
		}
		if err := c.auth.Authorize(ctx, c.user.ID, p.TaskID); err != nil {
			c.sendError(env.Event, "not authorized for this task")
			return
		}
		c.hub.Join(c, TaskRoom(p.TaskID))

	case EventLeaveTask:
		var p RoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.TaskID == "" {
			c.sendError(env.Event, "task_id is required")
			return
		}
		c.hub.Leave(c, TaskRoom(p.TaskID))

	case EventJoinNotifications:
		c.hub.Join(c, UserRoom(c.user.ID))

	case EventTypingStart, EventTypingStop:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.TaskID == "" {
			c.sendError(env.Event, "task_id is required")
			return
		}
		// Membership doubles as the authorization gate: joins are checked,
		// so only participants can be in the room. Non-members are dropped
		// silently; typing is fire-and-forget.
		if !c.hub.isMember(c, TaskRoom(p.TaskID)) {
			return
		}
		c.hub.Typing(p.TaskID, c.user.ID, env.Event == EventTypingStart, c)

	default:
		c.sendError(env.Event, "unknown event")
	}
}

// sendError reports a rejected event back to this connection only.
func (c *Conn) sendError(event, message string) {
	frame, err := marshalEvent(EventError, ErrorPayload{Event: event, Message: message})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// isExpectedClose reports whether a read error is a normal peer close.
func isExpectedClose(err error) bool {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.StatusNormalClosure || ce.Code == websocket.StatusGoingAway
	}
	return errors.Is(err, context.Canceled)
}
