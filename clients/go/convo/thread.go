package convo

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status tags a thread entry's delivery state.
type Status int

const (
	// StatusSending marks a provisional message awaiting server
	// confirmation.
	StatusSending Status = iota
	// StatusSent marks a server-confirmed message.
	StatusSent
	// StatusFailed marks a send that was rejected or timed out. The entry
	// stays visible and its content is recoverable for resend.
	StatusFailed
)

// ThreadMessage is one rendered entry: a message plus its delivery state.
// LocalID is set only on entries created locally.
type ThreadMessage struct {
	Message
	Status  Status
	LocalID string
}

// Thread is the client-side view of one task conversation. It makes
// sending feel instantaneous while staying consistent with server truth:
// provisional entries are appended immediately and later reconciled with
// the confirmed row or marked failed.
type Thread struct {
	mu       sync.Mutex
	messages []ThreadMessage
}

// NewThread builds a thread view from fetched history, sorted by
// CreatedAt ascending.
func NewThread(history []Message) *Thread {
	t := &Thread{messages: make([]ThreadMessage, 0, len(history))}
	for _, msg := range history {
		t.messages = append(t.messages, ThreadMessage{Message: msg, Status: StatusSent})
	}
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
	return t
}

// Messages returns a snapshot of the rendered list.
func (t *Thread) Messages() []ThreadMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ThreadMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// AppendLocal appends a provisional entry in StatusSending and returns
// its local id.
func (t *Thread) AppendLocal(taskID, senderID, receiverID, content string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	localID := fmt.Sprintf("temp-%d", time.Now().UnixNano())
	t.messages = append(t.messages, ThreadMessage{
		Message: Message{
			TaskID:     taskID,
			SenderID:   senderID,
			ReceiverID: receiverID,
			Content:    content,
			CreatedAt:  time.Now(),
		},
		Status:  StatusSending,
		LocalID: localID,
	})
	return localID
}

// Confirm reconciles a provisional entry with the server-confirmed
// message, preserving its list position. If the live broadcast already
// delivered the same server id, the provisional entry is removed instead,
// so the list never shows the message twice.
func (t *Thread) Confirm(localID string, msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasServerID(msg.ID) {
		t.removeLocal(localID)
		return
	}
	for i := range t.messages {
		if t.messages[i].LocalID == localID {
			t.messages[i] = ThreadMessage{Message: msg, Status: StatusSent}
			return
		}
	}
}

// Fail marks the provisional entry failed and returns its content so the
// UI can restore it into the input for resend. The failed bubble stays in
// the list. Falls back to the most recent entry still in StatusSending
// when the local id is unknown.
func (t *Thread) Fail(localID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].LocalID == localID && t.messages[i].Status == StatusSending {
			t.messages[i].Status = StatusFailed
			return t.messages[i].Content
		}
	}
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Status == StatusSending {
			t.messages[i].Status = StatusFailed
			return t.messages[i].Content
		}
	}
	return ""
}

// ApplyLive merges a new_message event into the list. Duplicates by
// server id are skipped, which is what keeps the sender's own broadcast
// from rendering twice next to the confirmed send. Live events from other
// senders may arrive out of order relative to each other, so insertion is
// by CreatedAt, not arrival order.
func (t *Thread) ApplyLive(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasServerID(msg.ID) {
		return
	}

	entry := ThreadMessage{Message: msg, Status: StatusSent}
	pos := len(t.messages)
	for pos > 0 {
		prev := t.messages[pos-1]
		// Walk past confirmed entries newer than msg, and past pending or
		// failed bubbles, which stay at the tail.
		if prev.Status == StatusSent && !prev.CreatedAt.After(msg.CreatedAt) {
			break
		}
		pos--
	}
	t.messages = append(t.messages, ThreadMessage{})
	copy(t.messages[pos+1:], t.messages[pos:])
	t.messages[pos] = entry
}

func (t *Thread) hasServerID(id string) bool {
	if id == "" {
		return false
	}
	for i := range t.messages {
		if t.messages[i].ID == id {
			return true
		}
	}
	return false
}

func (t *Thread) removeLocal(localID string) {
	for i := range t.messages {
		if t.messages[i].LocalID == localID {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return
		}
	}
}
