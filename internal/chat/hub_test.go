package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
)

type fakeSession struct {
	members map[string]bool
	sent    []string
}

func (f *fakeSession) EnsureActiveMember(_ context.Context, groupID, userID string) (*models.ChatGroupMember, error) {
	if !f.members[groupID+"/"+userID] {
		return nil, apperr.Forbidden("you are not a member of this group")
	}
	return &models.ChatGroupMember{GroupID: groupID, UserID: userID}, nil
}

func (f *fakeSession) CreateMessage(_ context.Context, groupID, userID, body, _ string) (*Message, error) {
	f.sent = append(f.sent, body)
	return &Message{ID: "0000000001000", GroupID: groupID, Body: body}, nil
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	return hub, cancel
}

func connect(t *testing.T, hub *Hub, session Session, userID string) *Client {
	t.Helper()
	client := &Client{
		id:      clientIDCounter.Add(1),
		userID:  userID,
		hub:     hub,
		session: session,
		send:    make(chan Event, 16),
		logger:  zap.NewNop(),
	}
	before := hub.ClientCount()
	hub.Register <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == before+1 }, time.Second, time.Millisecond)
	return client
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case event := <-c.send:
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case event := <-c.send:
		t.Fatalf("unexpected event %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastOnlyToRoom(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	session := &fakeSession{}
	inRoom := connect(t, hub, session, "alice")
	outside := connect(t, hub, session, "bob")
	hub.Join(inRoom, "g1")

	hub.Broadcast(context.Background(), "g1", Message{ID: "m1", GroupID: "g1"})

	event := receive(t, inRoom)
	assert.Equal(t, EventNewMessage, event.Type)
	assert.Equal(t, "m1", event.Data.(Message).ID)
	assertSilent(t, outside)
}

func TestClient_Handle(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	session := &fakeSession{members: map[string]bool{"g1/alice": true}}
	alice := connect(t, hub, session, "alice")
	ctx := context.Background()

	tests := []struct {
		name   string
		frame  Frame
		status string
		kind   string
	}{
		{"join without membership", Frame{Type: EventJoin, GroupID: "g2", RequestID: "1"}, "error", "forbidden"},
		{"join", Frame{Type: EventJoin, GroupID: "g1", RequestID: "2"}, "ok", ""},
		{"send", Frame{Type: EventSend, GroupID: "g1", Body: "hello", RequestID: "3"}, "ok", ""},
		{"unknown", Frame{Type: "chat:dance"}, "error", "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := alice.handle(ctx, tt.frame)
			require.NotNil(t, reply)
			ack := reply.Data.(Ack)
			assert.Equal(t, tt.status, ack.Status)
			assert.Equal(t, tt.kind, ack.Kind)
			assert.Equal(t, tt.frame.RequestID, ack.RequestID)
		})
	}

	assert.Equal(t, 1, hub.RoomSize("g1"))
	assert.Equal(t, 0, hub.RoomSize("g2"))
	assert.Equal(t, []string{"hello"}, session.sent)

	pong := alice.handle(ctx, Frame{Type: EventPing})
	assert.Equal(t, EventPong, pong.Type)

	alice.handle(ctx, Frame{Type: EventLeave, GroupID: "g1"})
	assert.Equal(t, 0, hub.RoomSize("g1"))
}

func TestHub_UnregisterLeavesRooms(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	client := connect(t, hub, &fakeSession{}, "alice")
	hub.Join(client, "g1")
	require.Equal(t, 1, hub.RoomSize("g1"))

	hub.Unregister <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, hub.RoomSize("g1"))

	_, open := <-client.send
	assert.False(t, open, "send channel should be closed")
}

// loopback delivers published payloads to subscribers synchronously
type loopback struct {
	mu       sync.Mutex
	handlers []func([]byte)
	payloads int
}

func (l *loopback) Enabled() bool { return true }

func (l *loopback) Publish(_ context.Context, _ string, payload []byte) error {
	l.mu.Lock()
	l.payloads++
	handlers := append([]func([]byte){}, l.handlers...)
	l.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (l *loopback) Subscribe(_ context.Context, _ string, handle func([]byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, handle)
	return nil
}

func TestRelay(t *testing.T) {
	tests := []struct {
		name   string
		pubsub PubSub
	}{
		{"local", nil},
		{"distributed", &loopback{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, cancel := startHub(t)
			defer cancel()

			client := connect(t, hub, &fakeSession{}, "alice")
			hub.Join(client, "g1")

			relay := NewRelay(hub, tt.pubsub, zap.NewNop())
			require.NoError(t, relay.Start(context.Background()))
			relay.Broadcast(context.Background(), "g1", Message{ID: "m1", GroupID: "g1", Body: "hi"})

			event := receive(t, client)
			assert.Equal(t, EventNewMessage, event.Type)
			assert.Equal(t, "hi", event.Data.(Message).Body)
		})
	}
}
