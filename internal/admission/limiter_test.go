package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testClock is a hand-driven time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_756_100_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSlidingWindowAdmitsUpToLimit(t *testing.T) {
	clock := newTestClock()
	limiter := NewSlidingWindow(WithLimit(5), WithWindow(time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := limiter.Allow(ctx, "client-a")
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d rejected below the limit", i+1)
		}
		if d.Remaining != 5-(i+1) {
			t.Errorf("request %d remaining = %d, want %d", i+1, d.Remaining, 5-(i+1))
		}
	}

	d, err := limiter.Allow(ctx, "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Error("request above the limit was admitted")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want within (0, window]", d.RetryAfter)
	}
}

func TestSlidingWindowSlides(t *testing.T) {
	clock := newTestClock()
	limiter := NewSlidingWindow(WithLimit(2), WithWindow(time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	mustAllow := func(want bool) {
		t.Helper()
		d, err := limiter.Allow(ctx, "client")
		if err != nil {
			t.Fatal(err)
		}
		if d.Allowed != want {
			t.Fatalf("Allowed = %v, want %v", d.Allowed, want)
		}
	}

	mustAllow(true)
	clock.Advance(30 * time.Second)
	mustAllow(true)
	mustAllow(false)

	// The first admission ages out; one slot frees.
	clock.Advance(31 * time.Second)
	mustAllow(true)
	mustAllow(false)
}

func TestSlidingWindowIsolatesClients(t *testing.T) {
	clock := newTestClock()
	limiter := NewSlidingWindow(WithLimit(1), WithWindow(time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	if d, _ := limiter.Allow(ctx, "alpha"); !d.Allowed {
		t.Fatal("alpha's first request rejected")
	}
	if d, _ := limiter.Allow(ctx, "alpha"); d.Allowed {
		t.Fatal("alpha's second request admitted")
	}
	if d, _ := limiter.Allow(ctx, "beta"); !d.Allowed {
		t.Error("beta throttled by alpha's window")
	}
}

func TestSlidingWindowUnderConcurrency(t *testing.T) {
	limiter := NewSlidingWindow(WithLimit(100), WithWindow(15*time.Minute))
	ctx := context.Background()

	var allowed, rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Allow(ctx, "hammering-client")
			if err != nil {
				t.Error(err)
				return
			}
			if d.Allowed {
				allowed.Add(1)
			} else {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 100 {
		t.Errorf("allowed = %d, want exactly 100", allowed.Load())
	}
	if rejected.Load() != 50 {
		t.Errorf("rejected = %d, want 50", rejected.Load())
	}
}

func TestSlidingWindowPrune(t *testing.T) {
	clock := newTestClock()
	limiter := NewSlidingWindow(WithLimit(10), WithWindow(time.Minute), WithClock(clock.Now))
	ctx := context.Background()

	limiter.Allow(ctx, "a")
	limiter.Allow(ctx, "b")
	if got := limiter.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	clock.Advance(2 * time.Minute)
	limiter.Allow(ctx, "c")
	limiter.Prune()

	if got := limiter.Len(); got != 1 {
		t.Errorf("Len() after prune = %d, want 1", got)
	}
}

func TestSlidingWindowDefaults(t *testing.T) {
	limiter := NewSlidingWindow()
	d, err := limiter.Allow(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if d.Limit != DefaultLimit || d.Window != DefaultWindow {
		t.Errorf("defaults = %d/%v, want %d/%v", d.Limit, d.Window, DefaultLimit, DefaultWindow)
	}
}
