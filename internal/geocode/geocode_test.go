package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock advances instantly on Sleep so limiter tests need no wall time.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) totalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.slept {
		total += d
	}
	return total
}

func TestLimiterSpacesBursts(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(time.Second, clock, nil)
	ctx := context.Background()

	const calls = 5
	start := clock.Now()
	var stamps []time.Time
	for i := 0; i < calls; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		stamps = append(stamps, clock.Now())
	}

	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < time.Second {
			t.Errorf("calls %d and %d only %v apart, want >= 1s", i-1, i, gap)
		}
	}
	if elapsed := clock.Now().Sub(start); elapsed < (calls-1)*time.Second {
		t.Errorf("burst of %d calls took %v, want >= %v", calls, elapsed, (calls-1)*time.Second)
	}
}

func TestLimiterSkipsSleepAfterIdlePeriod(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(time.Second, clock, nil)
	ctx := context.Background()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	clock.advance(5 * time.Second)
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if clock.totalSlept() != 0 {
		t.Errorf("slept %v after idle period, want 0", clock.totalSlept())
	}
}

func TestLimiterReadsDurableTimestamp(t *testing.T) {
	clock := newFakeClock()
	store := &memoryStore{}
	// A previous process called 200ms ago.
	store.SetLastCall(clock.Now().Add(-200 * time.Millisecond))

	limiter := NewLimiter(time.Second, clock, store)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if got := clock.totalSlept(); got != 800*time.Millisecond {
		t.Errorf("slept %v, want 800ms remainder of the persisted spacing", got)
	}
	last, _ := store.LastCall()
	if !last.Equal(clock.Now()) {
		t.Errorf("store last call = %v, want %v", last, clock.Now())
	}
}

func TestResolveBuildsPlaceName(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "regional country uses state",
			body: `{"display_name":"somewhere long","address":{"city":"Austin","state":"Texas","country":"United States","country_code":"us"}}`,
			want: "Austin, Texas",
		},
		{
			name: "non-regional country uses country",
			body: `{"display_name":"x","address":{"town":"Gouda","state":"Zuid-Holland","country":"Netherlands","country_code":"nl"}}`,
			want: "Gouda, Netherlands",
		},
		{
			name: "village fallback",
			body: `{"display_name":"x","address":{"village":"Hallstatt","country":"Austria","country_code":"at"}}`,
			want: "Hallstatt, Austria",
		},
		{
			name: "display name truncated when address empty",
			body: `{"display_name":"1 Long Road, Somewhere, A County, A State, A Country","address":{}}`,
			want: "1 Long Road, Somewhere, A County",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/reverse" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("User-Agent") == "" {
					t.Error("missing User-Agent header")
				}
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resolver := NewResolver(srv.URL, newFakeClock(), nil)
			got := resolver.Resolve(context.Background(), 40.0, -79.0)
			if got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDegradesToEmpty(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "over capacity", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		resolver := NewResolver(srv.URL, newFakeClock(), nil)
		if got := resolver.Resolve(context.Background(), 1, 2); got != "" {
			t.Errorf("Resolve on 503 = %q, want empty", got)
		}
	})

	t.Run("unreachable host", func(t *testing.T) {
		resolver := NewResolver("http://127.0.0.1:1", newFakeClock(), nil)
		if got := resolver.Resolve(context.Background(), 1, 2); got != "" {
			t.Errorf("Resolve on dial failure = %q, want empty", got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		resolver := NewResolver("http://127.0.0.1:1", newFakeClock(), nil)
		if got := resolver.Resolve(ctx, 1, 2); got != "" {
			t.Errorf("Resolve with cancelled context = %q, want empty", got)
		}
	})
}
