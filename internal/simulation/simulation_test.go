package simulation

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/npezzotti/go-gameportal/internal/testutil"
	"github.com/npezzotti/go-gameportal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedPeer_Reply(t *testing.T) {
	peer := NewSimulatedPeer(&testutil.SeqRandom{Ints: []int{1, 3}})

	msg, ok := peer.Reply(SeedFriends())
	require.True(t, ok)
	assert.Equal(t, "ProBuilder", msg.Sender)
	assert.Equal(t, "Join my server!", msg.Message)
	assert.False(t, msg.IsCurrentUser)
	assert.NotEmpty(t, msg.Id)

	_, ok = peer.Reply(nil)
	assert.False(t, ok, "expected no reply without friends")
}

func TestSimulatedPeer_Chatter(t *testing.T) {
	tcases := []struct {
		name   string
		draw   float64
		expect bool
	}{
		{name: "fires below threshold", draw: 0.29, expect: true},
		{name: "quiet at threshold", draw: 0.3, expect: false},
		{name: "quiet above threshold", draw: 0.9, expect: false},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			peer := NewSimulatedPeer(&testutil.SeqRandom{Floats: []float64{tc.draw}})
			_, ok := peer.Chatter(SeedFriends())
			assert.Equal(t, tc.expect, ok)
		})
	}
}

func TestSimulatedPeer_Delays(t *testing.T) {
	peer := NewSimulatedPeer(&testutil.SeqRandom{Floats: []float64{0, 0.5, 0.999}})

	assert.Equal(t, 30*time.Second, peer.ChatterInterval())
	assert.Equal(t, 45*time.Second, peer.ChatterInterval())
	d := peer.ChatterInterval()
	assert.True(t, d >= ChatterMin && d < ChatterMax, "expected interval within [30s, 60s), got %s", d)

	peer = NewSimulatedPeer(&testutil.SeqRandom{Floats: []float64{0.5}})
	assert.Equal(t, 7500*time.Millisecond, peer.FriendRequestDelay())
	assert.Equal(t, time.Second, peer.ReplyDelay())
}

func TestSimulatedPeer_AnswerFriendRequest(t *testing.T) {
	peer := NewSimulatedPeer(&testutil.SeqRandom{Floats: []float64{0.1, 0.7}})
	now := time.UnixMilli(1700000000000)
	peer.now = func() time.Time { return now }

	friend, ok := peer.AnswerFriendRequest("GameDev2023")
	require.True(t, ok, "expected acceptance below 0.7")
	assert.Equal(t, "friend_1700000000000", friend.Id)
	assert.Equal(t, "GameDev2023", friend.Username)
	assert.Equal(t, types.PresenceOnline, friend.Status)
	assert.Equal(t, "Now", friend.LastSeen)

	_, ok = peer.AnswerFriendRequest("GameDev2023")
	assert.False(t, ok, "expected silence at 0.7")
}

func TestServerSimulator_Generate(t *testing.T) {
	ss := NewServerSimulator(&testutil.SeqRandom{Ints: []int{0, 50, 99, 2}})
	now := time.Now()

	servers := ss.Generate(now)
	require.Len(t, servers, 12)

	games := map[string]string{}
	for _, s := range servers {
		games[s.Name] = s.Game
		assert.Equal(t, DefaultMaxPlayers, s.MaxPlayers)
		assert.True(t, s.Players >= 50 && s.Players <= s.MaxPlayers, "players out of range: %d", s.Players)
		assert.True(t, s.Ping >= 30 && s.Ping < 130, "ping out of range: %d", s.Ping)
		assert.Equal(t, types.ServerOnline, s.Status)
		assert.Equal(t, now, s.LastUpdated)
	}
	assert.Equal(t, "server_1", servers[0].Id)
	assert.Equal(t, "Obby Adventure", games["Obby Fun"])
	assert.Equal(t, "Pizza Tycoon", games["Tycoon City"])
	assert.Equal(t, "Roleplay Simulator", games["Roleplay World"])
	assert.Equal(t, "Adventure Quest", games["Adventure Land"])
	assert.Equal(t, "Various Games", games["Mini Games"])
}

func TestServerSimulator_RefreshClamps(t *testing.T) {
	tcases := []struct {
		name    string
		players int
		draw    int
		expect  int
	}{
		{name: "clamps low", players: 0, draw: 0, expect: 50},
		{name: "clamps high", players: 150, draw: 19, expect: 100},
		{name: "walks down", players: 75, draw: 0, expect: 65},
		{name: "walks up", players: 75, draw: 19, expect: 84},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ss := NewServerSimulator(&testutil.SeqRandom{Ints: []int{tc.draw}})
			s := types.Server{Players: tc.players, MaxPlayers: 100}
			ss.Refresh(&s, time.Now())
			assert.Equal(t, tc.expect, s.Players)
			assert.GreaterOrEqual(t, s.Ping, 30)
		})
	}
}

func TestServerSimulator_Churn(t *testing.T) {
	ss := NewServerSimulator(&testutil.SeqRandom{Ints: []int{0}, Floats: []float64{0.01}})
	now := time.Now()
	s := types.Server{Players: 2, MaxPlayers: 100, Status: types.ServerOnline}

	ss.Churn(&s, now)
	assert.Equal(t, types.ServerMaintenance, s.Status, "expected status toggle below 5%")
	assert.Equal(t, 0, s.Players, "expected players clamped at zero")
	assert.Equal(t, now, s.LastUpdated)

	ss = NewServerSimulator(&testutil.SeqRandom{Ints: []int{9}, Floats: []float64{0.5}})
	s = types.Server{Players: 99, MaxPlayers: 100, Status: types.ServerOnline}
	ss.Churn(&s, now)
	assert.Equal(t, types.ServerOnline, s.Status)
	assert.Equal(t, 100, s.Players, "expected players clamped at max")
}

func TestTimerScheduler(t *testing.T) {
	ts := NewTimerScheduler()
	var fired atomic.Int32

	ts.AfterFunc(time.Millisecond, func() { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return ts.Pending() == 0 }, time.Second, 5*time.Millisecond)

	ts.AfterFunc(time.Hour, func() { fired.Add(1) })
	assert.Equal(t, 1, ts.Pending())
	ts.Stop()
	assert.Equal(t, 0, ts.Pending())

	ts.AfterFunc(time.Millisecond, func() { fired.Add(1) })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "expected no work after Stop")
}
