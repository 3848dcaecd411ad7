package convo

import (
	"encoding/json"
	"testing"
)

func rawEvent(t *testing.T, event string, payload any) envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return envelope{Event: event, Data: data}
}

func TestDispatchFansOutToAllSubscribers(t *testing.T) {
	c := NewClient("http://localhost", "tok")

	var first, second []Message
	c.SubscribeNewMessage(func(m Message) { first = append(first, m) })
	c.SubscribeNewMessage(func(m Message) { second = append(second, m) })

	c.dispatch(rawEvent(t, eventNewMessage, Message{ID: "m1", Content: "hi"}))

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both handlers called, got %d and %d", len(first), len(second))
	}
	if first[0].ID != "m1" || second[0].ID != "m1" {
		t.Fatal("expected same message on both handlers")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := NewClient("http://localhost", "tok")

	var got []TypingEvent
	unsubscribe := c.SubscribeTyping(func(ev TypingEvent) { got = append(got, ev) })

	c.dispatch(rawEvent(t, eventUserTyping, TypingEvent{UserID: "u1", TaskID: "t1"}))
	unsubscribe()
	c.dispatch(rawEvent(t, eventUserTyping, TypingEvent{UserID: "u1", TaskID: "t1"}))

	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}

	// Unsubscribing twice is harmless.
	unsubscribe()
}

func TestDispatchRoutesByEvent(t *testing.T) {
	c := NewClient("http://localhost", "tok")

	var typing, stopped int
	c.SubscribeTyping(func(TypingEvent) { typing++ })
	c.SubscribeStoppedTyping(func(TypingEvent) { stopped++ })

	var notes []string
	c.SubscribeNotification(func(data json.RawMessage) { notes = append(notes, string(data)) })

	c.dispatch(rawEvent(t, eventUserTyping, TypingEvent{TaskID: "t1"}))
	c.dispatch(rawEvent(t, eventUserStoppedTyping, TypingEvent{TaskID: "t1"}))
	c.dispatch(envelope{Event: eventNotification, Data: json.RawMessage(`{"kind":"task_assigned"}`)})
	c.dispatch(envelope{Event: "unknown"})

	if typing != 1 || stopped != 1 {
		t.Fatalf("expected 1 typing and 1 stopped, got %d and %d", typing, stopped)
	}
	if len(notes) != 1 || notes[0] != `{"kind":"task_assigned"}` {
		t.Fatalf("unexpected notifications: %v", notes)
	}
}

func TestDispatchIgnoresMalformedPayload(t *testing.T) {
	c := NewClient("http://localhost", "tok")

	called := false
	c.SubscribeNewMessage(func(Message) { called = true })

	c.dispatch(envelope{Event: eventNewMessage, Data: json.RawMessage(`"not an object"`)})
	if called {
		t.Fatal("malformed payload must not reach handlers")
	}
}
