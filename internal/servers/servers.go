package servers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-gameportal/internal/database"
	"github.com/npezzotti/go-gameportal/internal/notify"
	"github.com/npezzotti/go-gameportal/internal/simulation"
	"github.com/npezzotti/go-gameportal/internal/stats"
	"github.com/npezzotti/go-gameportal/internal/types"
)

const ConnectDelay = 2 * time.Second

var (
	ErrServerFull     = types.NewUserError(types.SeverityError, "Server is full!")
	ErrServerNotFound = types.NewUserError(types.SeverityError, "Server not found")
	ErrNotLoggedIn    = types.NewUserError(types.SeverityWarning, "You are not logged in")
)

// Simulator drives the synthetic room data.
type Simulator interface {
	Generate(now time.Time) []types.Server
	Refresh(s *types.Server, now time.Time)
	Churn(s *types.Server, now time.Time)
	ChurnInterval() time.Duration
}

// Membership records the room the active account joined.
type Membership interface {
	Current() (types.Account, types.Session, bool)
	SetCurrentServer(ctx context.Context, serverId string) error
}

type Notifier interface {
	Push(ctx context.Context, n types.Notification) (types.Notification, error)
}

type Publisher interface {
	PublishServers(servers []types.Server)
	PublishConnected(server types.Server)
}

// Directory is the list of joinable rooms.
type Directory struct {
	log        *log.Logger
	store      database.DocumentStore
	sim        Simulator
	membership Membership
	notifier   Notifier
	scheduler  simulation.Scheduler
	stats      stats.StatsProvider
	now        func() time.Time

	mu        sync.Mutex
	publisher Publisher
}

func NewDirectory(logger *log.Logger, store database.DocumentStore, sim Simulator, membership Membership, notifier Notifier, scheduler simulation.Scheduler, st stats.StatsProvider) *Directory {
	st.RegisterMetric(stats.NumServerJoins)

	return &Directory{
		log:        logger,
		store:      store,
		sim:        sim,
		membership: membership,
		notifier:   notifier,
		scheduler:  scheduler,
		stats:      st,
		now:        time.Now,
	}
}

func (d *Directory) SetPublisher(p Publisher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publisher = p
}

// List returns a snapshot of every room. The directory is generated on
// first use.
func (d *Directory) List(ctx context.Context) ([]types.Server, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	servers, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot(servers), nil
}

// Refresh re-samples every room's players and ping.
func (d *Directory) Refresh(ctx context.Context) ([]types.Server, error) {
	return d.mutate(ctx, d.sim.Refresh)
}

// Join takes a slot in serverId for the active account. A full room is
// left unchanged.
func (d *Directory) Join(ctx context.Context, serverId string) (types.Server, error) {
	if _, _, ok := d.membership.Current(); !ok {
		return types.Server{}, ErrNotLoggedIn
	}

	d.mu.Lock()
	servers, err := d.load(ctx)
	if err != nil {
		d.mu.Unlock()
		return types.Server{}, err
	}

	idx := -1
	for i := range servers {
		if servers[i].Id == serverId {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return types.Server{}, ErrServerNotFound
	}
	if servers[idx].Players >= servers[idx].MaxPlayers {
		d.mu.Unlock()
		return types.Server{}, ErrServerFull
	}

	servers[idx].Players++
	if err := database.PutJSON(ctx, d.store, database.KeyServers, servers); err != nil {
		d.mu.Unlock()
		return types.Server{}, err
	}
	joined := servers[idx]
	publisher := d.publisher
	all := snapshot(servers)
	d.mu.Unlock()

	if publisher != nil {
		publisher.PublishServers(all)
	}

	if err := d.membership.SetCurrentServer(ctx, joined.Id); err != nil {
		d.log.Printf("record current server %q: %v", joined.Id, err)
	}
	d.stats.Incr(stats.NumServerJoins)
	d.log.Printf("joining %s (%d/%d)", joined.Name, joined.Players, joined.MaxPlayers)

	d.scheduler.AfterFunc(ConnectDelay, func() {
		d.connected(joined)
	})

	return joined, nil
}

// Run applies background churn every interval until ctx is cancelled.
func (d *Directory) Run(ctx context.Context) {
	ticker := time.NewTicker(d.sim.ChurnInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Println("server churn stopped")
			return
		case <-ticker.C:
			if _, err := d.mutate(ctx, d.sim.Churn); err != nil {
				d.log.Printf("server churn: %v", err)
			}
		}
	}
}

func (d *Directory) connected(s types.Server) {
	d.mu.Lock()
	publisher := d.publisher
	d.mu.Unlock()

	if publisher != nil {
		publisher.PublishConnected(s)
	}
	if d.notifier != nil {
		_, err := d.notifier.Push(context.Background(), types.Notification{
			Type:    notify.TypeServer,
			Title:   "Connected",
			Message: fmt.Sprintf("Connected to %s!", s.Name),
		})
		if err != nil {
			d.log.Printf("push connected notification: %v", err)
		}
	}
}

func (d *Directory) mutate(ctx context.Context, step func(*types.Server, time.Time)) ([]types.Server, error) {
	d.mu.Lock()
	servers, err := d.load(ctx)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}

	now := d.now()
	for i := range servers {
		step(&servers[i], now)
	}

	if err := database.PutJSON(ctx, d.store, database.KeyServers, servers); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	out := snapshot(servers)
	publisher := d.publisher
	d.mu.Unlock()

	if publisher != nil {
		publisher.PublishServers(snapshot(out))
	}
	return out, nil
}

// load must be called with d.mu held.
func (d *Directory) load(ctx context.Context) ([]types.Server, error) {
	var servers []types.Server
	found, err := database.GetJSON(ctx, d.store, database.KeyServers, &servers)
	if err != nil {
		return nil, fmt.Errorf("load servers: %w", err)
	}
	if !found || len(servers) == 0 {
		servers = d.sim.Generate(d.now())
		if err := database.PutJSON(ctx, d.store, database.KeyServers, servers); err != nil {
			return nil, err
		}
		d.log.Printf("generated %d servers", len(servers))
	}
	return servers, nil
}

func snapshot(servers []types.Server) []types.Server {
	out := make([]types.Server, len(servers))
	copy(out, servers)
	return out
}
