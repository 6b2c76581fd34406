package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/go-gameportal/internal/database"
	"github.com/npezzotti/go-gameportal/internal/notify"
	"github.com/npezzotti/go-gameportal/internal/simulation"
	"github.com/npezzotti/go-gameportal/internal/stats"
	"github.com/npezzotti/go-gameportal/internal/testutil"
	"github.com/npezzotti/go-gameportal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	account *types.Account
}

func (f *fakeSessions) Current() (types.Account, types.Session, bool) {
	if f.account == nil {
		return types.Account{}, types.Session{}, false
	}
	return *f.account, types.Session{UserId: f.account.Id}, true
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []types.Message
	friends  []types.Friend
}

func (r *recordingPublisher) PublishMessage(tag string, m types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *recordingPublisher) PublishFriend(f types.Friend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.friends = append(r.friends, f)
}

type fixture struct {
	svc       *Service
	store     *database.MemoryStore
	inbox     *notify.Inbox
	sched     *testutil.ManualScheduler
	sessions  *fakeSessions
	publisher *recordingPublisher
}

func newFixture(t *testing.T, rnd simulation.Random) *fixture {
	t.Helper()
	logger := testutil.TestLogger(t)

	st := &stats.MockStatsUpdater{}
	st.On("RegisterMetric", mock.Anything).Return()
	st.On("Incr", mock.Anything).Return()

	store := database.NewMemoryStore()
	inbox := notify.NewInbox(logger, store)
	sched := &testutil.ManualScheduler{}
	sessions := &fakeSessions{account: &types.Account{Id: "u1", Username: "nova"}}
	pub := &recordingPublisher{}

	svc := NewService(logger, store, simulation.NewSimulatedPeer(rnd), sessions, inbox, sched, st)
	svc.SetPublisher(pub)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{svc: svc, store: store, inbox: inbox, sched: sched, sessions: sessions, publisher: pub}
}

func TestPostMessage_AppendsAndReplies(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{Ints: []int{2, 0}})
	ctx := context.Background()

	msg, err := f.svc.PostMessage(ctx, DefaultTag, "  hello  ")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "nova", msg.Sender)
	assert.Equal(t, "hello", msg.Message)
	assert.True(t, msg.IsCurrentUser)

	require.Equal(t, 1, f.sched.Pending(), "expected a reply to be scheduled")
	assert.Equal(t, []time.Duration{time.Second}, f.sched.Delays)

	f.sched.Flush()

	msgs, err := f.svc.Messages(ctx, DefaultTag)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Message)
	assert.Equal(t, "ChatMaster", msgs[1].Sender)
	assert.Equal(t, "Nice! Want to team up?", msgs[1].Message)
	assert.False(t, msgs[1].IsCurrentUser)

	assert.Equal(t, 1, f.svc.Unread())
	notes, err := f.inbox.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Message from ChatMaster", notes[0].Title)

	assert.Len(t, f.publisher.messages, 2)
}

func TestPostMessage_NoOps(t *testing.T) {
	tcases := []struct {
		name     string
		body     string
		loggedIn bool
	}{
		{name: "blank body", body: "   \t", loggedIn: true},
		{name: "empty body", body: "", loggedIn: true},
		{name: "no session", body: "hello", loggedIn: false},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, &testutil.SeqRandom{})
			if !tc.loggedIn {
				f.sessions.account = nil
			}

			msg, err := f.svc.PostMessage(context.Background(), DefaultTag, tc.body)
			assert.NoError(t, err)
			assert.Nil(t, msg)
			assert.Equal(t, 0, f.sched.Pending(), "expected no reply to be scheduled")

			_, err = f.store.Get(context.Background(), database.KeyChatMessages)
			assert.ErrorIs(t, err, database.ErrNotFound, "expected nothing persisted")
		})
	}
}

func TestPostMessage_OtherTagHasNoReply(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{})
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, "party", "gg")
	require.NoError(t, err)
	assert.Equal(t, 0, f.sched.Pending())

	msgs, err := f.svc.Messages(ctx, "party")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "gg", msgs[0].Message)
}

func TestMessages_SeedsDefaultConversation(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{})
	ctx := context.Background()

	msgs, err := f.svc.Messages(ctx, DefaultTag)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg1", msgs[0].Id)
	assert.True(t, msgs[1].IsCurrentUser)

	again, err := f.svc.Messages(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, msgs, again, "expected seed to be persisted once")

	other, err := f.svc.Messages(ctx, "party")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestFriends(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{})
	ctx := context.Background()

	friends, err := f.svc.Friends(ctx)
	require.NoError(t, err)
	require.Len(t, friends, 3)

	online, err := f.svc.OnlineFriends(ctx)
	require.NoError(t, err)
	assert.Len(t, online, 3, "expected online and in-game friends to count")

	require.NoError(t, database.PutJSON(ctx, f.store, database.KeyFriends, []types.Friend{
		{Id: "a", Username: "A", Status: types.PresenceOffline},
		{Id: "b", Username: "B", Status: types.PresenceInGame},
	}))
	online, err = f.svc.OnlineFriends(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "B", online[0].Username)
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{})

	tcases := []struct {
		query    string
		expected []string
	}{
		{query: "", expected: nil},
		{query: "c", expected: nil},
		{query: "é", expected: nil},
		{query: "co", expected: []string{"CoolPlayer123"}},
		{query: "ER", expected: []string{"CoolPlayer123", "ProBuilder", "ChatMaster"}},
		{query: "dev", expected: []string{"GameDev2023"}},
		{query: "zz", expected: nil},
	}

	for _, tc := range tcases {
		t.Run(tc.query, func(t *testing.T) {
			var names []string
			for _, u := range f.svc.SearchUsers(tc.query) {
				names = append(names, u.Username)
			}
			assert.Equal(t, tc.expected, names)
		})
	}
}

func TestSendFriendRequest(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{Floats: []float64{0.5, 0.2}})
		ctx := context.Background()

		require.NoError(t, f.svc.SendFriendRequest(ctx, "GameDev2023"))
		notes, _ := f.inbox.List(ctx)
		require.Len(t, notes, 1)
		assert.Equal(t, "Friend Request Sent", notes[0].Title)
		assert.Equal(t, "Friend request sent to GameDev2023", notes[0].Message)
		assert.Equal(t, []time.Duration{7500 * time.Millisecond}, f.sched.Delays)

		f.sched.Flush()

		friends, err := f.svc.Friends(ctx)
		require.NoError(t, err)
		require.Len(t, friends, 4)
		added := friends[3]
		assert.Equal(t, "GameDev2023", added.Username)
		assert.Equal(t, types.PresenceOnline, added.Status)
		assert.Equal(t, "Now", added.LastSeen)

		notes, _ = f.inbox.List(ctx)
		require.Len(t, notes, 2)
		assert.Equal(t, "Friend Request Accepted", notes[0].Title)
		assert.Equal(t, "GameDev2023 accepted your friend request!", notes[0].Message)
		assert.Len(t, f.publisher.friends, 1)
	})

	t.Run("unanswered", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{Floats: []float64{0.5, 0.9}})
		ctx := context.Background()

		require.NoError(t, f.svc.SendFriendRequest(ctx, "GameDev2023"))
		f.sched.Flush()

		friends, err := f.svc.Friends(ctx)
		require.NoError(t, err)
		assert.Len(t, friends, 3)
		notes, _ := f.inbox.List(ctx)
		assert.Len(t, notes, 1, "expected only the sent notification")
	})

	t.Run("missing username", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{})
		assert.ErrorIs(t, f.svc.SendFriendRequest(context.Background(), " "), ErrMissingUsername)
		assert.Equal(t, 0, f.sched.Pending())
	})
}

func TestUnreadAndMarkRead(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.PostMessage(ctx, DefaultTag, "hi")
		require.NoError(t, err)
	}
	f.sched.Flush()
	assert.Equal(t, 2, f.svc.Unread())

	f.svc.MarkRead()
	assert.Equal(t, 0, f.svc.Unread())
}

type fastPeer struct {
	*simulation.SimulatedPeer
}

func (fastPeer) ChatterInterval() time.Duration { return time.Millisecond }

func TestRun_InjectsChatterUntilCancelled(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{})
	f.svc.peer = fastPeer{simulation.NewSimulatedPeer(&testutil.SeqRandom{Floats: []float64{0.1}})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.svc.Unread() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after cancel")
	}
}
