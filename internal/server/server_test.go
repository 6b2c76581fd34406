package server

import (
	"context"
	"testing"
	"time"

	"github.com/npezzotti/go-gameportal/internal/stats"
	"github.com/npezzotti/go-gameportal/internal/testutil"
	"github.com/npezzotti/go-gameportal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatPoster struct {
	mock.Mock
}

func (m *MockChatPoster) PostMessage(ctx context.Context, tag, body string) (*types.Message, error) {
	args := m.Called(ctx, tag, body)
	msg, _ := args.Get(0).(*types.Message)
	return msg, args.Error(1)
}

func (m *MockChatPoster) MarkRead() {
	m.Called()
}

// newTestHub creates a Hub whose stats accept any call.
func newTestHub(t *testing.T, chat ChatPoster) (*Hub, *stats.MockStatsUpdater) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", stats.NumActiveClients).Return().Once()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	return NewHub(testutil.TestLogger(t), chat, su), su
}

func newTestClient(t *testing.T, hub *Hub, name string) *Client {
	return &Client{
		hub:  hub,
		log:  testutil.TestLogger(t),
		user: types.Account{Id: name, Username: name},
		send: make(chan *ServerMessage, 8),
		stop: make(chan struct{}),
	}
}

func receive(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("expected message for %s", c.user.Username)
		return nil
	}
}

func TestNewHub(t *testing.T) {
	chat := &MockChatPoster{}
	hub, su := newTestHub(t, chat)
	defer su.AssertExpectations(t)

	assert.Equal(t, chat, hub.chat, "expected chat poster to be set")
	assert.NotNil(t, hub.clients, "expected clients map to be initialized")
	assert.NotNil(t, hub.registerChan, "expected registerChan to be initialized")
	assert.NotNil(t, hub.deRegisterChan, "expected deRegisterChan to be initialized")
	assert.Equal(t, 256, cap(hub.broadcastChan), "expected buffered broadcast channel")
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub, su := newTestHub(t, &MockChatPoster{})
	go hub.Run()
	defer hub.Shutdown(context.Background())

	a := newTestClient(t, hub, "a")
	b := newTestClient(t, hub, "b")
	hub.RegisterClient(a)
	hub.RegisterClient(b)

	publish := []struct {
		name string
		fire func()
		typ  string
	}{
		{name: "message", fire: func() { hub.PublishMessage("friends", types.Message{Id: "m1"}) }, typ: EventMessage},
		{name: "friend", fire: func() { hub.PublishFriend(types.Friend{Id: "f1"}) }, typ: EventFriendAdded},
		{name: "notification", fire: func() { hub.PublishNotification(types.Notification{Id: "n1"}) }, typ: EventNotification},
		{name: "servers", fire: func() { hub.PublishServers([]types.Server{{Id: "s1"}}) }, typ: EventServersUpdated},
		{name: "connected", fire: func() { hub.PublishConnected(types.Server{Id: "s1"}) }, typ: EventServerConnected},
	}

	for _, p := range publish {
		t.Run(p.name, func(t *testing.T) {
			p.fire()
			for _, c := range []*Client{a, b} {
				msg := receive(t, c)
				require.NotNil(t, msg.Event)
				assert.Equal(t, p.typ, msg.Event.Type)
			}
		})
	}

	su.AssertNumberOfCalls(t, "Incr", 2)
}

func TestHub_Deregister(t *testing.T) {
	hub, su := newTestHub(t, &MockChatPoster{})
	go hub.Run()
	defer hub.Shutdown(context.Background())

	a := newTestClient(t, hub, "a")
	hub.RegisterClient(a)
	hub.deregisterClient(a)
	hub.deregisterClient(a)

	hub.PublishMessage("friends", types.Message{Id: "m1"})
	hub.RegisterClient(newTestClient(t, hub, "sync"))

	assert.Len(t, a.send, 0, "expected deregistered client to receive nothing")
	su.AssertNumberOfCalls(t, "Decr", 1)
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	hub, _ := newTestHub(t, &MockChatPoster{})
	for i := 0; i < cap(hub.broadcastChan); i++ {
		hub.PublishFriend(types.Friend{})
	}

	assert.NotPanics(t, func() { hub.PublishFriend(types.Friend{}) })
	assert.Len(t, hub.broadcastChan, cap(hub.broadcastChan))
}

func TestHub_Shutdown(t *testing.T) {
	t.Run("stops clients", func(t *testing.T) {
		hub, _ := newTestHub(t, &MockChatPoster{})
		go hub.Run()

		c := newTestClient(t, hub, "a")
		hub.RegisterClient(c)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, hub.Shutdown(ctx))

		select {
		case <-c.stop:
		default:
			t.Error("expected client stop channel to be closed")
		}

		assert.NoError(t, hub.Shutdown(ctx), "expected second shutdown to succeed")
		hub.RegisterClient(newTestClient(t, hub, "late"))
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		hub, _ := newTestHub(t, &MockChatPoster{})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := hub.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
