package testutil

import (
	"log"
	"os"
	"sync"
	"testing"
	"time"
)

func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// SeqRandom replays fixed draws. Ints are reduced modulo n; both
// sequences repeat once exhausted and default to zero when empty.
type SeqRandom struct {
	mu     sync.Mutex
	Ints   []int
	Floats []float64
	ii, fi int
}

func (s *SeqRandom) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	return v % n
}

func (s *SeqRandom) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

// ImmediateScheduler runs deferred work synchronously and records the
// requested delays.
type ImmediateScheduler struct {
	mu     sync.Mutex
	Delays []time.Duration
}

func (s *ImmediateScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	s.Delays = append(s.Delays, d)
	s.mu.Unlock()
	f()
}

// ManualScheduler queues deferred work until Flush is called.
type ManualScheduler struct {
	mu      sync.Mutex
	Delays  []time.Duration
	pending []func()
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Delays = append(s.Delays, d)
	s.pending = append(s.pending, f)
}

func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush runs everything queued so far.
func (s *ManualScheduler) Flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
