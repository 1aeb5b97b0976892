package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	writes chan []byte
	closed chan struct{}
	fail   bool
}

func newFakeConn(fail bool) *fakeConn {
	return &fakeConn{writes: make(chan []byte, 8), closed: make(chan struct{}), fail: fail}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	if f.fail {
		return errors.New("broken pipe")
	}
	f.writes <- data
	return nil
}

func (f *fakeConn) Close() error {
	close(f.closed)
	return nil
}

func waitClosed(t *testing.T, f *fakeConn) {
	t.Helper()
	select {
	case <-f.closed:
	case <-time.After(time.Second):
		t.Fatal("connection was not closed")
	}
}

func TestHubBroadcastsToRoomOnly(t *testing.T) {
	hub := NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a, b := newFakeConn(false), newFakeConn(false)
	hub.Register <- &Client{Conn: a, Room: "DF0001"}
	hub.Register <- &Client{Conn: b, Room: "DF0002"}

	hub.Publish(Event{Event: EventTaskCompleted, RoomID: "DF0001", UserID: 7, TaskID: 3, Points: 20})

	select {
	case data := <-a.writes:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, EventTaskCompleted, ev.Event)
		assert.Equal(t, 20, ev.Points)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	assert.Empty(t, b.writes)
}

func TestHubDropsBrokenClient(t *testing.T) {
	hub := NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	broken := newFakeConn(true)
	hub.Register <- &Client{Conn: broken, Room: "DF0001"}
	hub.Publish(Event{Event: EventMemberJoined, RoomID: "DF0001"})
	waitClosed(t, broken)
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(1)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	conn := newFakeConn(false)
	hub.Register <- &Client{Conn: conn, Room: "DF0001"}
	cancel()
	waitClosed(t, conn)
	<-stopped
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(Event{Event: EventMemberJoined, RoomID: "DF0001"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}
