package ws

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tasklane/convo/internal/models"
)

func newTestConn(t *testing.T, hub *Hub) *Conn {
	t.Helper()
	user := models.User{ID: uuid.New()}
	return newConn(user, nil, hub, nil, zerolog.Nop())
}

// takeFrame pops one queued frame, or nil when the queue is empty.
func takeFrame(c *Conn) []byte {
	select {
	case frame := <-c.send:
		return frame
	default:
		return nil
	}
}

func decodeEnvelope(t *testing.T, frame []byte) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newTestConn(t, hub)

	hub.Join(c, TaskRoom("t1"))
	hub.Join(c, TaskRoom("t1"))

	if n := hub.memberCount(TaskRoom("t1")); n != 1 {
		t.Fatalf("expected 1 member after double join, got %d", n)
	}

	// One membership means one delivery.
	hub.NewMessage(&models.Message{ID: "m1", TaskID: "t1"})
	if takeFrame(c) == nil {
		t.Fatal("expected one frame")
	}
	if takeFrame(c) != nil {
		t.Fatal("expected no duplicate delivery")
	}
}

func TestNewMessageReachesAllMembersIncludingSender(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sender := newTestConn(t, hub)
	peer := newTestConn(t, hub)
	outsider := newTestConn(t, hub)

	hub.Join(sender, TaskRoom("t1"))
	hub.Join(peer, TaskRoom("t1"))
	hub.Join(outsider, TaskRoom("t2"))

	hub.NewMessage(&models.Message{ID: "m1", TaskID: "t1", SenderID: sender.user.ID, Content: "hi"})

	for _, c := range []*Conn{sender, peer} {
		frame := takeFrame(c)
		if frame == nil {
			t.Fatal("expected delivery to room member")
		}
		env := decodeEnvelope(t, frame)
		if env.Event != EventNewMessage {
			t.Fatalf("expected %s, got %s", EventNewMessage, env.Event)
		}
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.ID != "m1" || msg.Content != "hi" {
			t.Fatalf("unexpected payload: %+v", msg)
		}
	}
	if takeFrame(outsider) != nil {
		t.Fatal("other rooms must not receive the message")
	}
}

func TestTypingExcludesOriginatingConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	typist := newTestConn(t, hub)
	peer := newTestConn(t, hub)

	hub.Join(typist, TaskRoom("t1"))
	hub.Join(peer, TaskRoom("t1"))

	hub.Typing("t1", typist.user.ID, true, typist)

	if takeFrame(typist) != nil {
		t.Fatal("typing must not echo to the originator")
	}
	frame := takeFrame(peer)
	if frame == nil {
		t.Fatal("expected typing delivery to peer")
	}
	env := decodeEnvelope(t, frame)
	if env.Event != EventUserTyping {
		t.Fatalf("expected %s, got %s", EventUserTyping, env.Event)
	}

	hub.Typing("t1", typist.user.ID, false, typist)
	env = decodeEnvelope(t, takeFrame(peer))
	if env.Event != EventUserStoppedTyping {
		t.Fatalf("expected %s, got %s", EventUserStoppedTyping, env.Event)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newTestConn(t, hub)

	hub.Join(c, TaskRoom("t1"))
	hub.Leave(c, TaskRoom("t1"))

	hub.NewMessage(&models.Message{ID: "m1", TaskID: "t1"})
	if takeFrame(c) != nil {
		t.Fatal("expected no delivery after leave")
	}

	// Leaving a room never joined is a no-op.
	hub.Leave(c, TaskRoom("t2"))
}

func TestDropClearsAllMemberships(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newTestConn(t, hub)

	hub.Join(c, TaskRoom("t1"))
	hub.Join(c, TaskRoom("t2"))
	hub.Join(c, UserRoom(c.user.ID))

	hub.Drop(c)

	if len(c.rooms) != 0 {
		t.Fatalf("expected no memberships after drop, got %d", len(c.rooms))
	}
	hub.NewMessage(&models.Message{ID: "m1", TaskID: "t1"})
	hub.NewMessage(&models.Message{ID: "m2", TaskID: "t2"})
	if takeFrame(c) != nil {
		t.Fatal("expected no delivery after drop")
	}
}

func TestBroadcastDropsFramesForSlowConsumer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newTestConn(t, hub)
	hub.Join(c, TaskRoom("t1"))

	// Fill the queue and then some; the broadcaster must never block.
	for i := 0; i < sendQueueSize+10; i++ {
		hub.NewMessage(&models.Message{ID: "m", TaskID: "t1"})
	}

	got := 0
	for takeFrame(c) != nil {
		got++
	}
	if got != sendQueueSize {
		t.Fatalf("expected %d queued frames, got %d", sendQueueSize, got)
	}
}

func TestNotifyTargetsUserRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	subscribed := newTestConn(t, hub)
	other := newTestConn(t, hub)

	hub.Join(subscribed, UserRoom(subscribed.user.ID))
	hub.Join(other, UserRoom(other.user.ID))

	record := json.RawMessage(`{"kind":"task_assigned"}`)
	hub.Notify(subscribed.user.ID, record)

	frame := takeFrame(subscribed)
	if frame == nil {
		t.Fatal("expected notification delivery")
	}
	env := decodeEnvelope(t, frame)
	if env.Event != EventNotification {
		t.Fatalf("expected %s, got %s", EventNotification, env.Event)
	}
	if string(env.Data) != string(record) {
		t.Fatalf("expected record passthrough, got %s", env.Data)
	}
	if takeFrame(other) != nil {
		t.Fatal("notification must not leak to other users")
	}
}
