package realtime

import (
	"testing"

	"go.uber.org/zap"
)

func newTestClient(id string) *Client {
	return &Client{ID: id, Role: RolePlayer, send: make(chan Event, 8)}
}

func drain(c *Client) []Event {
	var evs []Event
	for {
		select {
		case ev := <-c.send:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestSendToConnection(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	c := newTestClient("c1")
	hub.Register(c)

	hub.Send("c1", NewEvent(EventError, ErrorPayload{Message: "nope"}))
	evs := drain(c)
	if len(evs) != 1 || evs[0].Type != EventError {
		t.Fatalf("got %+v, want one error event", evs)
	}

	// Unknown connection is a no-op.
	hub.Send("ghost", NewEvent(EventError, ErrorPayload{Message: "nope"}))
}

func TestBroadcastToRoomExcludesOrigin(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	host := newTestClient("host")
	a := newTestClient("a")
	b := newTestClient("b")
	for _, c := range []*Client{host, a, b} {
		hub.Register(c)
		hub.JoinRoom("rigel-7", c.ID)
	}

	hub.BroadcastToRoom("rigel-7", NewEvent(EventPlayerJoined, nil), "a")

	if evs := drain(a); len(evs) != 0 {
		t.Fatalf("excluded origin received %+v", evs)
	}
	for _, c := range []*Client{host, b} {
		if evs := drain(c); len(evs) != 1 || evs[0].Type != EventPlayerJoined {
			t.Fatalf("%s got %+v, want one player_joined", c.ID, evs)
		}
	}
}

func TestBroadcastDoesNotLeakAcrossRooms(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient("a")
	b := newTestClient("b")
	hub.Register(a)
	hub.Register(b)
	hub.JoinRoom("rigel-7", a.ID)
	hub.JoinRoom("vega-2", b.ID)

	hub.BroadcastToRoom("rigel-7", NewEvent(EventSessionEnded, nil))

	if evs := drain(b); len(evs) != 0 {
		t.Fatalf("other room received %+v", evs)
	}
	if evs := drain(a); len(evs) != 1 {
		t.Fatalf("room member got %d events, want 1", len(evs))
	}
}

func TestUnregisterRemovesFromRooms(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient("a")
	hub.Register(a)
	hub.JoinRoom("rigel-7", a.ID)

	hub.Unregister(a)

	if hub.Alive("a") {
		t.Fatal("connection still alive after unregister")
	}
	hub.BroadcastToRoom("rigel-7", NewEvent(EventPlayerLeft, nil))
	if evs := drain(a); len(evs) != 0 {
		t.Fatalf("unregistered connection received %+v", evs)
	}
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	c := &Client{ID: "slow", send: make(chan Event, 1)}
	hub.Register(c)

	hub.Send("slow", NewEvent(EventPlayerJoined, nil))
	hub.Send("slow", NewEvent(EventPlayerLeft, nil))

	evs := drain(c)
	if len(evs) != 1 || evs[0].Type != EventPlayerJoined {
		t.Fatalf("got %+v, want only the first event", evs)
	}
}

func TestCloseConnWithKeepsFinalEvent(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	c := &Client{ID: "slow", send: make(chan Event, 1)}
	hub.Register(c)

	hub.Send("slow", NewEvent(EventPlayerJoined, nil)) // fills the buffer
	hub.CloseConnWith("slow", NewEvent(EventSessionEnded, nil))

	// Sends after the close are dropped, not a panic on the closed channel.
	hub.Send("slow", NewEvent(EventPlayerLeft, nil))

	if ev := <-c.send; ev.Type != EventPlayerJoined {
		t.Fatalf("buffered event = %s, want player_joined first", ev.Type)
	}
	if _, ok := <-c.send; ok {
		t.Fatal("send channel still open after forced close")
	}
	if c.final == nil || c.final.Type != EventSessionEnded {
		t.Fatal("final event not retained for delivery after the queue")
	}

	// Repeated close on the same connection is a no-op.
	hub.CloseConn("slow")
}

func TestJoinRoomRequiresRegisteredConn(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	hub.JoinRoom("rigel-7", "ghost")
	hub.BroadcastToRoom("rigel-7", NewEvent(EventPlayerJoined, nil))
	// Nothing to assert beyond not panicking; the room stays empty.
	if hub.Alive("ghost") {
		t.Fatal("ghost connection reported alive")
	}
}
