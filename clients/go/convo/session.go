package convo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

// Event names on the wire, both directions.
const (
	eventJoinTask          = "join_task"
	eventLeaveTask         = "leave_task"
	eventJoinNotifications = "join_notifications"
	eventTypingStart       = "typing_start"
	eventTypingStop        = "typing_stop"

	eventNewMessage        = "new_message"
	eventUserTyping        = "user_typing"
	eventUserStoppedTyping = "user_stopped_typing"
	eventNotification      = "notification"
)

// writeTimeout bounds a single outbound event write.
const writeTimeout = 5 * time.Second

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Connect opens the live session. It is a no-op when already connected:
// one Client never holds more than one connection. There is no automatic
// reconnect; after Disconnect (or a dropped transport) the caller must
// Connect again and re-join its rooms, since room membership is
// connection-scoped on the server.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.sock != nil {
		c.mu.Unlock()
		return nil
	}

	// The dial refuses an HTTP client with a Timeout set; cancellation
	// comes from ctx, and the socket outlives any REST timeout anyway.
	dialClient := c.HTTPClient
	if dialClient != nil && dialClient.Timeout > 0 {
		clone := *dialClient
		clone.Timeout = 0
		dialClient = &clone
	}

	wsURL := httpToWS(c.BaseURL) + "/ws"
	sock, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: dialClient,
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + c.Token}},
	})
	if err != nil {
		c.mu.Unlock()
		return err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.sock = sock
	c.cancelRead = cancel
	c.mu.Unlock()

	go c.readLoop(readCtx, sock)
	return nil
}

// Disconnect tears down the live session. Safe to call when not
// connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	sock := c.sock
	cancel := c.cancelRead
	c.sock = nil
	c.cancelRead = nil
	c.mu.Unlock()

	if sock == nil {
		return
	}
	cancel()
	sock.Close(websocket.StatusNormalClosure, "")
}

// Connected reports whether a live session is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil
}

// JoinTask subscribes the session to a task room. No-op when not
// connected.
func (c *Client) JoinTask(taskID string) {
	c.sendEvent(eventJoinTask, map[string]string{"task_id": taskID})
}

// LeaveTask unsubscribes the session from a task room. No-op when not
// connected.
func (c *Client) LeaveTask(taskID string) {
	c.sendEvent(eventLeaveTask, map[string]string{"task_id": taskID})
}

// JoinNotifications subscribes the session to the caller's notification
// room.
func (c *Client) JoinNotifications() {
	c.sendEvent(eventJoinNotifications, nil)
}

// StartTyping signals that the caller is typing in a task thread.
func (c *Client) StartTyping(taskID string) {
	c.sendEvent(eventTypingStart, map[string]string{"task_id": taskID})
}

// StopTyping signals that the caller stopped typing.
func (c *Client) StopTyping(taskID string) {
	c.sendEvent(eventTypingStop, map[string]string{"task_id": taskID})
}

func (c *Client) sendEvent(event string, payload any) {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return
	}

	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = sock.Write(ctx, websocket.MessageText, frame)
}

// readLoop dispatches client-bound events until the connection ends.
// Handlers run on this single goroutine and must not block it.
func (c *Client) readLoop(ctx context.Context, sock *websocket.Conn) {
	for {
		typ, data, err := sock.Read(ctx)
		if err != nil {
			// A dropped transport leaves the client disconnected; release
			// the read context and clear state so a later Connect can open
			// a fresh session.
			c.mu.Lock()
			if c.sock == sock {
				c.sock = nil
				if c.cancelRead != nil {
					c.cancelRead()
					c.cancelRead = nil
				}
			}
			c.mu.Unlock()
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	switch env.Event {
	case eventNewMessage:
		var msg Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		for _, fn := range c.subs.newMessageHandlers() {
			fn(msg)
		}
	case eventUserTyping:
		var ev TypingEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return
		}
		for _, fn := range c.subs.typingHandlers() {
			fn(ev)
		}
	case eventUserStoppedTyping:
		var ev TypingEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return
		}
		for _, fn := range c.subs.stoppedTypingHandlers() {
			fn(ev)
		}
	case eventNotification:
		for _, fn := range c.subs.notificationHandlers() {
			fn(env.Data)
		}
	}
}

// httpToWS rewrites an http(s) base URL to its ws(s) counterpart.
func httpToWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
