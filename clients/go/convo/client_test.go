package convo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-token")
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(ConversationListResponse{})
	})

	if _, err := c.Conversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestErrorResponsesSurfaceServerMessage(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "not authorized for this task"})
	})

	_, err := c.Send(context.Background(), "t1", "bob", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "not authorized") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMessagesDecodesThread(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/t1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(MessageListResponse{
			TaskID: "t1",
			Messages: []Message{
				{ID: "m1", TaskID: "t1", Content: "hello"},
			},
		})
	})

	msgs, err := c.Messages(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestSendReconciledConfirmsOnSuccess(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Message{
			ID:         "m1",
			TaskID:     req.TaskID,
			ReceiverID: req.ReceiverID,
			Content:    req.Content,
			CreatedAt:  time.Now(),
		})
	})

	th := NewThread(nil)
	msg, err := c.SendReconciled(context.Background(), th, "t1", "alice", "bob", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "m1" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	entries := th.Messages()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != "m1" || entries[0].Status != StatusSent {
		t.Fatalf("expected confirmed entry, got %+v", entries[0])
	}
}

func TestSendReconciledFailsBubbleOnRejection(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "content must be 1-1000 characters"})
	})

	th := NewThread(nil)
	_, err := c.SendReconciled(context.Background(), th, "t1", "alice", "bob", "hello")
	if err == nil {
		t.Fatal("expected error")
	}

	entries := th.Messages()
	if len(entries) != 1 {
		t.Fatalf("expected failed bubble to remain, got %d entries", len(entries))
	}
	if entries[0].Status != StatusFailed || entries[0].Content != "hello" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestSendReconciledTimesOut(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Message{ID: "m1"})
	})
	c.SendTimeout = 20 * time.Millisecond

	th := NewThread(nil)
	_, err := c.SendReconciled(context.Background(), th, "t1", "alice", "bob", "slow")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	entries := th.Messages()
	if len(entries) != 1 || entries[0].Status != StatusFailed {
		t.Fatalf("expected failed bubble after timeout, got %+v", entries)
	}
}

func TestHTTPToWS(t *testing.T) {
	if got := httpToWS("http://localhost:8080"); got != "ws://localhost:8080" {
		t.Fatalf("got %q", got)
	}
	if got := httpToWS("https://convo.example.com"); got != "wss://convo.example.com" {
		t.Fatalf("got %q", got)
	}
}
