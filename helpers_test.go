package promo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// sequenceSource replays vals (mod n) so shuffles are fully predictable
type sequenceSource struct {
	mu   sync.Mutex
	vals []int
	i    int
}

func newSequenceSource(vals ...int) *sequenceSource { return &sequenceSource{vals: vals} }

func (s *sequenceSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v % n
}

// manualClock hands out timers that only fire when the test says so
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, time.March, 14, 15, 9, 26, 535_897_932, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTimer(time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (c *manualClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// fireAll fires every timer that has not been stopped
func (c *manualClock) fireAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers {
		if !t.stopped.Load() {
			select {
			case t.ch <- c.now:
			default:
			}
		}
	}
}

type manualTimer struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTimer) C() <-chan time.Time { return t.ch }
func (t *manualTimer) Stop() bool          { return !t.stopped.Swap(true) }

type manualTicker struct{ ch chan time.Time }

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

// failingStorage fails every call with err
type failingStorage struct {
	err   error
	calls atomic.Int64
}

func (s *failingStorage) Get(context.Context, string) ([]byte, error) {
	s.calls.Add(1)
	return nil, s.err
}

func (s *failingStorage) Set(context.Context, string, []byte) error {
	s.calls.Add(1)
	return s.err
}

func (s *failingStorage) Del(context.Context, string) error {
	s.calls.Add(1)
	return s.err
}

// fakeLocker records lock traffic and optionally refuses acquisition
type fakeLocker struct {
	mu       sync.Mutex
	refuse   bool
	acquired []string
	released []string
}

func (l *fakeLocker) AcquireLock(_ context.Context, lockKey, _ string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refuse {
		return false, nil
	}
	l.acquired = append(l.acquired, lockKey)
	return true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, lockKey, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, lockKey)
	return true, nil
}

var errBoom = errors.New("boom")

// counterIDs returns ids "id-1", "id-2", ...
func counterIDs() IDGenerator {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

// sampleResult builds a valid result with the given id
func sampleResult(id string) PromotionResult {
	return PromotionResult{
		ID:         id,
		Name:       "Promo " + id,
		Rounds:     2,
		RankedList: []string{"B", "A", "C"},
		Winners:    []string{"B"},
		CreatedAt:  time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC),
	}
}

func makeEntries(n int) []string {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf("entry-%05d", i)
	}
	return entries
}
