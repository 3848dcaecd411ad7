package convo

import (
	"sync"
	"time"
)

// defaultTypingIdle is how long after the last keystroke the notifier
// waits before signaling stop.
const defaultTypingIdle = time.Second

// TypingNotifier converts raw keystrokes into typing_start and
// typing_stop signals. Every keystroke fires start and pushes the stop
// deadline out; stop fires exactly once per idle gap.
type TypingNotifier struct {
	idle  time.Duration
	start func()
	stop  func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewTypingNotifier builds a notifier that calls start on each keystroke
// and stop after idle elapses with no keystrokes. A non-positive idle
// uses the default.
func NewTypingNotifier(idle time.Duration, start, stop func()) *TypingNotifier {
	if idle <= 0 {
		idle = defaultTypingIdle
	}
	return &TypingNotifier{idle: idle, start: start, stop: stop}
}

// TaskTypingNotifier binds a notifier to one task thread on a client.
func (c *Client) TaskTypingNotifier(taskID string, idle time.Duration) *TypingNotifier {
	return NewTypingNotifier(idle,
		func() { c.StartTyping(taskID) },
		func() { c.StopTyping(taskID) },
	)
}

// Keystroke reports one keystroke. It fires start immediately and resets
// the idle timer.
func (n *TypingNotifier) Keystroke() {
	n.start()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.idle, n.fireStop)
}

// Cancel drops the pending stop without firing it, for when the thread
// view closes mid-typing.
func (n *TypingNotifier) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// Flush fires the pending stop immediately, for when the user sends the
// message they were typing.
func (n *TypingNotifier) Flush() {
	n.mu.Lock()
	if n.timer == nil {
		n.mu.Unlock()
		return
	}
	n.timer.Stop()
	n.timer = nil
	n.mu.Unlock()

	n.stop()
}

func (n *TypingNotifier) fireStop() {
	n.mu.Lock()
	n.timer = nil
	n.mu.Unlock()

	n.stop()
}
