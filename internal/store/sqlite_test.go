package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tasklane/convo/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "convo.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, token string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := s.db.Exec(`INSERT INTO users (id, api_token) VALUES (?, ?)`, id.String(), token); err != nil {
		t.Fatal(err)
	}
	return id
}

func seedTask(t *testing.T, s *SQLiteStore, taskID string, clientID uuid.UUID) {
	t.Helper()
	if _, err := s.db.Exec(`INSERT INTO tasks (id, client_id) VALUES (?, ?)`, taskID, clientID.String()); err != nil {
		t.Fatal(err)
	}
}

func sendMessage(t *testing.T, s *SQLiteStore, taskID string, from, to uuid.UUID, content string) *models.Message {
	t.Helper()
	msg := &models.Message{TaskID: taskID, SenderID: from, ReceiverID: to, Content: content}
	if err := s.InsertMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	// Distinct timestamps keep latest-per-thread selection unambiguous.
	time.Sleep(2 * time.Millisecond)
	return msg
}

// Two providers share one task. A newer message in the other pair's
// thread must not hide the caller's conversation from their inbox.
func TestSQLiteListConversationsPerCaller(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	client := seedUser(t, s, "client-tok")
	p1 := seedUser(t, s, "p1-tok")
	p2 := seedUser(t, s, "p2-tok")
	seedTask(t, s, "t1", client)

	first := sendMessage(t, s, "t1", p1, client, "from p1")
	second := sendMessage(t, s, "t1", p2, client, "from p2")

	sums, err := s.ListConversations(ctx, p1)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 {
		t.Fatalf("expected 1 conversation for p1, got %d", len(sums))
	}
	if sums[0].LastMessage.ID != first.ID {
		t.Fatalf("expected p1's own latest message %s, got %s", first.ID, sums[0].LastMessage.ID)
	}
	if sums[0].PeerID != client {
		t.Fatalf("expected peer %s, got %s", client, sums[0].PeerID)
	}

	// The client participates in both pairs; one row per task, keyed on
	// the newest of their messages, with both unread.
	sums, err = s.ListConversations(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 {
		t.Fatalf("expected 1 conversation for client, got %d", len(sums))
	}
	if sums[0].LastMessage.ID != second.ID {
		t.Fatalf("expected newest message %s, got %s", second.ID, sums[0].LastMessage.ID)
	}
	if sums[0].PeerID != p2 {
		t.Fatalf("expected peer %s, got %s", p2, sums[0].PeerID)
	}
	if sums[0].Unread != 2 {
		t.Fatalf("expected 2 unread, got %d", sums[0].Unread)
	}
}

func TestSQLiteThreadOrderAndReadState(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	client := seedUser(t, s, "client-tok")
	provider := seedUser(t, s, "provider-tok")
	seedTask(t, s, "t1", client)

	sendMessage(t, s, "t1", client, provider, "one")
	msg := sendMessage(t, s, "t1", provider, client, "two")

	msgs, err := s.ListTaskMessages(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "one" || msgs[1].Content != "two" {
		t.Fatalf("expected oldest-first thread, got %+v", msgs)
	}

	updated, err := s.MarkMessageRead(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated == nil || !updated.IsRead {
		t.Fatalf("expected read message back, got %+v", updated)
	}

	missing, err := s.GetMessage(ctx, "no-such-id")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing message, got %+v, %v", missing, err)
	}
}
