package simulation

import (
	"fmt"
	"strings"
	"time"

	"github.com/npezzotti/go-gameportal/internal/types"
)

const (
	DefaultMaxPlayers  = 100
	RefreshFloor       = 50
	RefreshCeiling     = 100
	ChurnInterval      = 30 * time.Second
	StatusToggleChance = 0.05
)

// ServerSimulator generates the room directory and drives its synthetic
// player counts.
type ServerSimulator struct {
	rnd Random
}

func NewServerSimulator(rnd Random) *ServerSimulator {
	return &ServerSimulator{rnd: rnd}
}

// Generate builds the initial directory.
func (ss *ServerSimulator) Generate(now time.Time) []types.Server {
	servers := make([]types.Server, 0, len(serverNames))
	for i, name := range serverNames {
		servers = append(servers, types.Server{
			Id:          fmt.Sprintf("server_%d", i+1),
			Name:        name,
			Region:      regions[ss.rnd.Intn(len(regions))],
			Players:     clamp(RefreshFloor+ss.rnd.Intn(51), RefreshFloor, DefaultMaxPlayers),
			MaxPlayers:  DefaultMaxPlayers,
			Ping:        ss.ping(),
			Game:        gameFor(name),
			Status:      types.ServerOnline,
			LastUpdated: now,
		})
	}
	return servers
}

// Refresh applies a bounded random walk to the player count, clamped to
// [RefreshFloor, RefreshCeiling], and resamples the ping.
func (ss *ServerSimulator) Refresh(s *types.Server, now time.Time) {
	s.Players = clamp(s.Players+ss.rnd.Intn(20)-10, RefreshFloor, RefreshCeiling)
	s.Ping = ss.ping()
	s.LastUpdated = now
}

// Churn is the periodic background perturbation.
func (ss *ServerSimulator) Churn(s *types.Server, now time.Time) {
	if ss.rnd.Float64() < StatusToggleChance {
		if s.Status == types.ServerOnline {
			s.Status = types.ServerMaintenance
		} else {
			s.Status = types.ServerOnline
		}
		s.LastUpdated = now
	}
	s.Players = clamp(s.Players+ss.rnd.Intn(10)-5, 0, s.MaxPlayers)
}

func (ss *ServerSimulator) ChurnInterval() time.Duration {
	return ChurnInterval
}

func (ss *ServerSimulator) ping() int {
	return 30 + ss.rnd.Intn(100)
}

func gameFor(name string) string {
	switch {
	case strings.Contains(name, "Obby"):
		return "Obby Adventure"
	case strings.Contains(name, "Tycoon"):
		return "Pizza Tycoon"
	case strings.Contains(name, "Roleplay"):
		return "Roleplay Simulator"
	case strings.Contains(name, "Adventure"):
		return "Adventure Quest"
	default:
		return "Various Games"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
