package convo

import (
	"encoding/json"
	"sync"
)

// subscribers holds the event handler lists. Unlike the original UI
// socket service, which kept a single replaceable callback per event,
// each event supports multiple subscribers; Subscribe* returns an
// unsubscribe function. This is a deliberate behavior change (see
// DESIGN.md).
type subscribers struct {
	mu     sync.Mutex
	nextID int

	newMessage    map[int]func(Message)
	typing        map[int]func(TypingEvent)
	stoppedTyping map[int]func(TypingEvent)
	notification  map[int]func(json.RawMessage)
}

// SubscribeNewMessage registers a handler for new_message events.
func (c *Client) SubscribeNewMessage(fn func(Message)) (unsubscribe func()) {
	s := &c.subs
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.newMessage == nil {
		s.newMessage = make(map[int]func(Message))
	}
	id := s.nextID
	s.nextID++
	s.newMessage[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.newMessage, id)
	}
}

// SubscribeTyping registers a handler for user_typing events.
func (c *Client) SubscribeTyping(fn func(TypingEvent)) (unsubscribe func()) {
	s := &c.subs
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typing == nil {
		s.typing = make(map[int]func(TypingEvent))
	}
	id := s.nextID
	s.nextID++
	s.typing[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.typing, id)
	}
}

// SubscribeStoppedTyping registers a handler for user_stopped_typing
// events.
func (c *Client) SubscribeStoppedTyping(fn func(TypingEvent)) (unsubscribe func()) {
	s := &c.subs
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stoppedTyping == nil {
		s.stoppedTyping = make(map[int]func(TypingEvent))
	}
	id := s.nextID
	s.nextID++
	s.stoppedTyping[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.stoppedTyping, id)
	}
}

// SubscribeNotification registers a handler for out-of-band notification
// records.
func (c *Client) SubscribeNotification(fn func(json.RawMessage)) (unsubscribe func()) {
	s := &c.subs
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notification == nil {
		s.notification = make(map[int]func(json.RawMessage))
	}
	id := s.nextID
	s.nextID++
	s.notification[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.notification, id)
	}
}

func (s *subscribers) newMessageHandlers() []func(Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(Message), 0, len(s.newMessage))
	for _, fn := range s.newMessage {
		out = append(out, fn)
	}
	return out
}

func (s *subscribers) typingHandlers() []func(TypingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(TypingEvent), 0, len(s.typing))
	for _, fn := range s.typing {
		out = append(out, fn)
	}
	return out
}

func (s *subscribers) stoppedTypingHandlers() []func(TypingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(TypingEvent), 0, len(s.stoppedTyping))
	for _, fn := range s.stoppedTyping {
		out = append(out, fn)
	}
	return out
}

func (s *subscribers) notificationHandlers() []func(json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(json.RawMessage), 0, len(s.notification))
	for _, fn := range s.notification {
		out = append(out, fn)
	}
	return out
}
