package convo

import (
	"sync/atomic"
	"testing"
	"time"
)

func newCountingNotifier(idle time.Duration) (*TypingNotifier, *int32, *int32) {
	var starts, stops int32
	n := NewTypingNotifier(idle,
		func() { atomic.AddInt32(&starts, 1) },
		func() { atomic.AddInt32(&stops, 1) },
	)
	return n, &starts, &stops
}

func TestKeystrokeFiresStartAndDebouncesStop(t *testing.T) {
	n, starts, stops := newCountingNotifier(40 * time.Millisecond)

	// A burst of keystrokes within the idle window.
	for i := 0; i < 5; i++ {
		n.Keystroke()
		time.Sleep(5 * time.Millisecond)
	}

	if got := atomic.LoadInt32(starts); got != 5 {
		t.Fatalf("expected 5 starts, got %d", got)
	}
	if got := atomic.LoadInt32(stops); got != 0 {
		t.Fatalf("expected no stop during the burst, got %d", got)
	}

	// One stop after the idle gap, and only one.
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(stops); got != 1 {
		t.Fatalf("expected exactly 1 stop after idle, got %d", got)
	}
}

func TestSecondBurstGetsItsOwnStop(t *testing.T) {
	n, _, stops := newCountingNotifier(30 * time.Millisecond)

	n.Keystroke()
	time.Sleep(100 * time.Millisecond)
	n.Keystroke()
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(stops); got != 2 {
		t.Fatalf("expected 2 stops for 2 idle gaps, got %d", got)
	}
}

func TestFlushFiresStopImmediately(t *testing.T) {
	n, _, stops := newCountingNotifier(time.Minute)

	n.Keystroke()
	n.Flush()
	if got := atomic.LoadInt32(stops); got != 1 {
		t.Fatalf("expected 1 stop from flush, got %d", got)
	}

	// Flush with nothing pending is a no-op.
	n.Flush()
	if got := atomic.LoadInt32(stops); got != 1 {
		t.Fatalf("expected no extra stop, got %d", got)
	}
}

func TestCancelDropsPendingStop(t *testing.T) {
	n, _, stops := newCountingNotifier(20 * time.Millisecond)

	n.Keystroke()
	n.Cancel()
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(stops); got != 0 {
		t.Fatalf("expected no stop after cancel, got %d", got)
	}
}
