package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

// Config defines rate limiting parameters for a client.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	// Cooldown, when set, blocks a key for this long after it has been denied.
	Cooldown time.Duration
}

// Limiter is a token bucket with an optional cooldown after a denial.
type Limiter struct {
	bucket   *xrate.Limiter
	cooldown time.Duration

	mu           sync.Mutex
	blockedUntil time.Time
}

// New creates a new limiter. A non-positive RequestsPerSecond disables limiting.
func New(cfg Config) *Limiter {
	limit := xrate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = xrate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		bucket:   xrate.NewLimiter(limit, burst),
		cooldown: cfg.Cooldown,
	}
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (l *Limiter) Allow() bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Before(l.blockedUntil) {
		return false
	}
	if l.bucket.AllowN(now, 1) {
		return true
	}
	if l.cooldown > 0 {
		l.blockedUntil = now.Add(l.cooldown)
	}
	return false
}

// Wait blocks until a token becomes available or ctx is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	until := l.blockedUntil
	l.mu.Unlock()

	if d := time.Until(until); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.bucket.Wait(ctx)
}

// Manager holds per-client limiters.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
}

func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		defaults: defaults,
	}
}

func (m *Manager) GetLimiter(clientKey string) *Limiter {
	m.mu.RLock()
	if lim, ok := m.limiters[clientKey]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[clientKey]; ok {
		return lim
	}
	lim := New(m.defaults)
	m.limiters[clientKey] = lim
	return lim
}

// Wait ensures rate limit compliance for a given key.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}
