// Package convo provides the client for the TaskLane conversation
// service: REST read/write paths plus a live websocket session with
// optimistic send reconciliation for conversation UIs.
package convo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// defaultSendTimeout bounds a send request so a provisional message never
// stays in StatusSending forever.
const defaultSendTimeout = 15 * time.Second

// Message mirrors the server's persisted message record.
type Message struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationSummary is one inbox row.
type ConversationSummary struct {
	TaskID      string  `json:"task_id"`
	PeerID      string  `json:"peer_id"`
	LastMessage Message `json:"last_message"`
	Unread      int     `json:"unread"`
}

// TypingEvent identifies who is typing in which task thread.
type TypingEvent struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

// Client is a conversation service client. One Client owns at most one
// live websocket connection; Connect is reentrant and Disconnect is safe
// to call when not connected.
type Client struct {
	BaseURL     string
	Token       string
	HTTPClient  *http.Client
	SendTimeout time.Duration

	mu         sync.Mutex
	sock       *websocket.Conn
	cancelRead context.CancelFunc

	subs subscribers
}

// NewClient creates a client for the given base URL and bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		Token:       token,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		SendTimeout: defaultSendTimeout,
	}
}

// doRequest performs an HTTP request with bearer auth.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("convo error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// ConversationListResponse is the response from listing conversations.
type ConversationListResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

// Conversations lists the caller's inbox, newest activity first.
func (c *Client) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	respBody, err := c.doRequest(ctx, "GET", "/conversations", nil)
	if err != nil {
		return nil, err
	}

	var resp ConversationListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// MessageListResponse is the response from listing a task thread.
type MessageListResponse struct {
	TaskID   string    `json:"task_id"`
	Messages []Message `json:"messages"`
}

// Messages retrieves the full thread for a task, oldest first.
func (c *Client) Messages(ctx context.Context, taskID string) ([]Message, error) {
	respBody, err := c.doRequest(ctx, "GET", "/tasks/"+taskID+"/messages", nil)
	if err != nil {
		return nil, err
	}

	var resp MessageListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	TaskID     string `json:"task_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// Send posts a message and returns the persisted record. The server
// broadcasts it to the task room as a side effect, so the caller's own
// live session will also receive it as a new_message event.
func (c *Client) Send(ctx context.Context, taskID, receiverID, content string) (*Message, error) {
	reqBody, _ := json.Marshal(SendMessageRequest{
		TaskID:     taskID,
		ReceiverID: receiverID,
		Content:    content,
	})

	respBody, err := c.doRequest(ctx, "POST", "/messages", reqBody)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead marks a message read. Receiver-only.
func (c *Client) MarkRead(ctx context.Context, messageID string) (*Message, error) {
	respBody, err := c.doRequest(ctx, "PUT", "/messages/"+messageID+"/read", nil)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendReconciled runs the optimistic send flow against a thread view:
// append a provisional bubble, issue the send with the client timeout,
// then confirm or fail the bubble. It returns the persisted message on
// success; on failure the typed content is returned through the thread's
// failed entry for resend.
func (c *Client) SendReconciled(ctx context.Context, t *Thread, taskID, senderID, receiverID, content string) (*Message, error) {
	localID := t.AppendLocal(taskID, senderID, receiverID, content)

	timeout := c.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := c.Send(sendCtx, taskID, receiverID, content)
	if err != nil {
		t.Fail(localID)
		return nil, err
	}
	t.Confirm(localID, *msg)
	return msg, nil
}
