package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits at most quota requests per key within any rolling window.
type Limiter interface {
	Allow(key string) bool
	Prune()
	Run(ctx context.Context)
}

type Option func(*limiter)

func WithClock(now func() time.Time) Option {
	return func(l *limiter) {
		l.now = now
	}
}

type limiter struct {
	mu      sync.Mutex
	quota   int
	window  time.Duration
	entries map[string][]time.Time
	now     func() time.Time
}

func NewLimiter(quota int, window time.Duration, opts ...Option) Limiter {
	if quota < 1 {
		quota = 1
	}
	l := &limiter{
		quota:   quota,
		window:  window,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits := l.recent(l.entries[key], now)
	if len(hits) >= l.quota {
		l.entries[key] = hits
		return false
	}
	l.entries[key] = append(hits, now)
	return true
}

// Prune drops keys whose whole window has aged out.
func (l *limiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, hits := range l.entries {
		hits = l.recent(hits, now)
		if len(hits) == 0 {
			delete(l.entries, key)
			continue
		}
		l.entries[key] = hits
	}
}

// Run prunes once per window until ctx is done.
func (l *limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

func (l *limiter) recent(hits []time.Time, now time.Time) []time.Time {
	cut := 0
	for cut < len(hits) && now.Sub(hits[cut]) >= l.window {
		cut++
	}
	if cut == 0 {
		return hits
	}
	return append(hits[:0:0], hits[cut:]...)
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Throttle is a process-wide token bucket. A nil Throttle admits everything.
type Throttle struct {
	limiter *rate.Limiter
}

func NewThrottle(rps float64, burst int) *Throttle {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttle) Allow() bool {
	if t == nil {
		return true
	}
	return t.limiter.Allow()
}
