// Package admission rate-limits inbound compute requests per client
// identity over a sliding window. The window state is the only mutable
// shared memory on the hot path; both implementations are safe for
// concurrent use and never admit more than the configured count inside
// any rolling window.
package admission

import (
	"context"
	"sync"
	"time"
)

// Default limits: 100 requests per 15 minutes per client.
const (
	DefaultLimit  = 100
	DefaultWindow = 15 * time.Minute
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int           // admissions left in the current window
	RetryAfter time.Duration // when rejected, how long until a slot frees
	Limit      int
	Window     time.Duration
}

// Limiter gates inbound compute requests by client identity.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// SlidingWindow is the in-process Limiter: per-key admission timestamps
// pruned on access under one mutex.
type SlidingWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	clients map[string][]time.Time
}

var _ Limiter = (*SlidingWindow)(nil)

// WindowOption configures a SlidingWindow.
type WindowOption func(*SlidingWindow)

// WithLimit sets the max admissions per window.
func WithLimit(n int) WindowOption {
	return func(s *SlidingWindow) {
		s.limit = n
	}
}

// WithWindow sets the window length.
func WithWindow(d time.Duration) WindowOption {
	return func(s *SlidingWindow) {
		s.window = d
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) WindowOption {
	return func(s *SlidingWindow) {
		s.now = now
	}
}

// NewSlidingWindow creates an in-process sliding window limiter.
func NewSlidingWindow(opts ...WindowOption) *SlidingWindow {
	s := &SlidingWindow{
		limit:   DefaultLimit,
		window:  DefaultWindow,
		now:     time.Now,
		clients: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow admits or rejects one request for key.
func (s *SlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)

	stamps := s.clients[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= s.limit {
		s.clients[key] = kept
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: kept[0].Add(s.window).Sub(now),
			Limit:      s.limit,
			Window:     s.window,
		}, nil
	}

	kept = append(kept, now)
	s.clients[key] = kept
	return Decision{
		Allowed:   true,
		Remaining: s.limit - len(kept),
		Limit:     s.limit,
		Window:    s.window,
	}, nil
}

// Len reports how many client identities currently hold window state.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Prune drops identities whose windows have fully expired. Callers run
// it periodically to bound memory on churning client populations.
func (s *SlidingWindow) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	for key, stamps := range s.clients {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(s.clients, key)
		}
	}
}
