package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tasklane/convo/internal/models"
)

func TestBuildSummaries(t *testing.T) {
	me := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	now := time.Now()

	latest := []models.Message{
		{ID: "m1", TaskID: "t-old", SenderID: me, ReceiverID: alice, CreatedAt: now.Add(-time.Hour)},
		{ID: "m2", TaskID: "t-new", SenderID: bob, ReceiverID: me, CreatedAt: now},
	}
	unread := map[string]int{"t-new": 3}

	summaries := buildSummaries(latest, unread, me)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	// Newest activity first.
	if summaries[0].TaskID != "t-new" || summaries[1].TaskID != "t-old" {
		t.Fatalf("expected newest-first order, got %s then %s", summaries[0].TaskID, summaries[1].TaskID)
	}

	// Peer is always the other party, whichever direction the last
	// message went.
	if summaries[0].PeerID != bob {
		t.Fatalf("expected peer %s, got %s", bob, summaries[0].PeerID)
	}
	if summaries[1].PeerID != alice {
		t.Fatalf("expected peer %s, got %s", alice, summaries[1].PeerID)
	}

	if summaries[0].Unread != 3 || summaries[1].Unread != 0 {
		t.Fatalf("unexpected unread counts: %d, %d", summaries[0].Unread, summaries[1].Unread)
	}
}

func TestBuildSummariesEmpty(t *testing.T) {
	summaries := buildSummaries(nil, nil, uuid.New())
	if summaries == nil || len(summaries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", summaries)
	}
}
