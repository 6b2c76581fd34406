package servers

import (
	"context"
	"errors"
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

type fakeMembership struct {
	loggedIn bool
	joined   []string
	err      error
}

func (f *fakeMembership) Current() (types.Account, types.Session, bool) {
	return types.Account{Id: "u1"}, types.Session{}, f.loggedIn
}

func (f *fakeMembership) SetCurrentServer(_ context.Context, id string) error {
	f.joined = append(f.joined, id)
	return f.err
}

type recordingPublisher struct {
	lists     int
	connected []types.Server
}

func (r *recordingPublisher) PublishServers([]types.Server) { r.lists++ }
func (r *recordingPublisher) PublishConnected(s types.Server) {
	r.connected = append(r.connected, s)
}

type fixture struct {
	dir        *Directory
	store      *database.MemoryStore
	inbox      *notify.Inbox
	sched      *testutil.ManualScheduler
	membership *fakeMembership
	publisher  *recordingPublisher
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
	membership := &fakeMembership{loggedIn: true}
	pub := &recordingPublisher{}

	dir := NewDirectory(logger, store, simulation.NewServerSimulator(rnd), membership, inbox, sched, st)
	dir.SetPublisher(pub)
	dir.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{dir: dir, store: store, inbox: inbox, sched: sched, membership: membership, publisher: pub}
}

func (f *fixture) seed(t *testing.T, servers ...types.Server) {
	t.Helper()
	require.NoError(t, database.PutJSON(context.Background(), f.store, database.KeyServers, servers))
}

func TestList_GeneratesOnce(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{Ints: []int{7, 13, 21}})
	ctx := context.Background()

	first, err := f.dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 12)

	second, err := f.dir.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second, "expected generated directory to be persisted")

	second[0].Players = -1
	third, _ := f.dir.List(ctx)
	assert.NotEqual(t, -1, third[0].Players, "expected List to return a copy")
}

func TestRefresh_StaysWithinBounds(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{Ints: []int{0, 19, 5, 11, 3}})
	ctx := context.Background()
	f.seed(t,
		types.Server{Id: "a", Players: 0, MaxPlayers: 100},
		types.Server{Id: "b", Players: 100, MaxPlayers: 100},
		types.Server{Id: "c", Players: 150, MaxPlayers: 100},
		types.Server{Id: "d", Players: 60, MaxPlayers: 100},
	)

	for i := 0; i < 20; i++ {
		servers, err := f.dir.Refresh(ctx)
		require.NoError(t, err)
		for _, s := range servers {
			assert.GreaterOrEqual(t, s.Players, 50, "room %s", s.Id)
			assert.LessOrEqual(t, s.Players, 100, "room %s", s.Id)
			assert.GreaterOrEqual(t, s.Ping, 30)
			assert.Less(t, s.Ping, 130)
		}
	}
	assert.Equal(t, 20, f.publisher.lists)
}

func TestJoin(t *testing.T) {
	t.Run("takes a slot and connects later", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{})
		ctx := context.Background()
		f.seed(t, types.Server{Id: "server_1", Name: "Obby Fun", Players: 99, MaxPlayers: 100})

		joined, err := f.dir.Join(ctx, "server_1")
		require.NoError(t, err)
		assert.Equal(t, 100, joined.Players)
		assert.Equal(t, []string{"server_1"}, f.membership.joined)
		assert.Equal(t, []time.Duration{ConnectDelay}, f.sched.Delays)
		assert.Empty(t, f.publisher.connected, "expected connection to be deferred")

		f.sched.Flush()
		require.Len(t, f.publisher.connected, 1)
		notes, err := f.inbox.List(ctx)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "Connected to Obby Fun!", notes[0].Message)

		servers, _ := f.dir.List(ctx)
		assert.Equal(t, 100, servers[0].Players)
	})

	t.Run("full room is unchanged", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{})
		ctx := context.Background()
		f.seed(t, types.Server{Id: "server_1", Name: "Obby Fun", Players: 100, MaxPlayers: 100})

		_, err := f.dir.Join(ctx, "server_1")
		assert.ErrorIs(t, err, ErrServerFull)
		assert.EqualError(t, err, "Server is full!")

		servers, _ := f.dir.List(ctx)
		assert.Equal(t, 100, servers[0].Players)
		assert.Empty(t, f.membership.joined)
		assert.Equal(t, 0, f.sched.Pending())
	})

	t.Run("unknown room", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{})
		f.seed(t, types.Server{Id: "server_1", Players: 1, MaxPlayers: 100})
		_, err := f.dir.Join(context.Background(), "server_99")
		assert.ErrorIs(t, err, ErrServerNotFound)
	})

	t.Run("logged out", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{})
		f.membership.loggedIn = false
		_, err := f.dir.Join(context.Background(), "server_1")
		assert.ErrorIs(t, err, ErrNotLoggedIn)
	})

	t.Run("maintenance room can be joined", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{})
		f.seed(t, types.Server{Id: "server_1", Players: 10, MaxPlayers: 100, Status: types.ServerMaintenance})
		joined, err := f.dir.Join(context.Background(), "server_1")
		require.NoError(t, err)
		assert.Equal(t, 11, joined.Players)
	})

	t.Run("membership failure does not undo the join", func(t *testing.T) {
		f := newFixture(t, &testutil.SeqRandom{})
		f.membership.err = errors.New("store down")
		f.seed(t, types.Server{Id: "server_1", Players: 10, MaxPlayers: 100})
		joined, err := f.dir.Join(context.Background(), "server_1")
		require.NoError(t, err)
		assert.Equal(t, 11, joined.Players)
	})
}

type fastSim struct {
	*simulation.ServerSimulator
}

func (fastSim) ChurnInterval() time.Duration { return time.Millisecond }

func TestRun_ChurnsUntilCancelled(t *testing.T) {
	f := newFixture(t, &testutil.SeqRandom{})
	f.dir.sim = fastSim{simulation.NewServerSimulator(&testutil.SeqRandom{Ints: []int{0}, Floats: []float64{0.5}})}
	f.seed(t, types.Server{Id: "a", Players: 40, MaxPlayers: 100, Status: types.ServerOnline})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.dir.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		servers, err := f.dir.List(context.Background())
		return err == nil && servers[0].Players < 40
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after cancel")
	}
}
