package simulation

import (
	"math/rand"
	"sync"
	"time"
)

// Random is the subset of *rand.Rand the simulations draw from.
type Random interface {
	Intn(n int) int
	Float64() float64
}

// NewRandom returns a goroutine-safe source seeded from the clock.
func NewRandom() Random {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Scheduler runs deferred work.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler schedules work on real timers and can cancel everything
// still pending.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[*time.Timer]struct{})}
}

func (ts *TimerScheduler) AfterFunc(d time.Duration, f func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		ts.mu.Lock()
		delete(ts.timers, t)
		ts.mu.Unlock()
		f()
	})
	ts.timers[t] = struct{}{}
}

// Pending reports how many timers have not fired yet.
func (ts *TimerScheduler) Pending() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.timers)
}

// Stop cancels pending timers. Later AfterFunc calls are dropped.
func (ts *TimerScheduler) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.stopped = true
	for t := range ts.timers {
		t.Stop()
		delete(ts.timers, t)
	}
}

// Between returns a duration drawn uniformly from [min, max).
func Between(r Random, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.Float64()*float64(max-min))
}
