package geocode

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall time so the limiter can be tested without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// RealClock returns the system clock.
func RealClock() Clock { return realClock{} }

// TimestampStore persists the last-call timestamp outside process memory so
// the spacing holds across restarts.
type TimestampStore interface {
	LastCall() (time.Time, error)
	SetLastCall(time.Time) error
}

// Limiter enforces a minimum spacing between calls. It is safe for
// concurrent use; concurrent callers are serialized so each pair of calls is
// separated by at least one interval.
type Limiter struct {
	mu       sync.Mutex
	clock    Clock
	store    TimestampStore
	interval time.Duration
}

// NewLimiter builds a limiter with the given spacing. A nil store keeps the
// timestamp in memory only.
func NewLimiter(interval time.Duration, clock Clock, store TimestampStore) *Limiter {
	if clock == nil {
		clock = RealClock()
	}
	if store == nil {
		store = &memoryStore{}
	}
	return &Limiter{clock: clock, store: store, interval: interval}
}

// Wait blocks until at least one interval has elapsed since the previous
// call, then records the current time as the new last-call timestamp. It
// returns early if ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, err := l.store.LastCall()
	if err == nil && !last.IsZero() {
		if remaining := l.interval - l.clock.Now().Sub(last); remaining > 0 {
			l.clock.Sleep(ctx, remaining)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.store.SetLastCall(l.clock.Now())
}

type memoryStore struct {
	mu   sync.Mutex
	last time.Time
}

func (m *memoryStore) LastCall() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *memoryStore) SetLastCall(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = t
	return nil
}
