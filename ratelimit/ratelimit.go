// Package ratelimit bounds how many turns a user may run per time window.
// Each user gets an independent token bucket that starts full and refills
// continuously at capacity/window.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds limiter settings.
type Config struct {
	// TurnsPerWindow is the bucket capacity. Zero disables limiting.
	TurnsPerWindow int

	// Window is the refill period for a full bucket.
	Window time.Duration
}

// DefaultConfig allows 30 turns per minute per user.
func DefaultConfig() Config {
	return Config{
		TurnsPerWindow: 30,
		Window:         time.Minute,
	}
}

type bucket struct {
	available  float64
	lastRefill time.Time
}

// Limiter is a per-user token bucket limiter. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	nowFunc func() time.Time
}

// New creates a limiter. A zero TurnsPerWindow or Window disables it:
// Allow then always returns true.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		nowFunc: time.Now,
	}
}

// Allow consumes one token for the user if available.
func (l *Limiter) Allow(userID string) bool {
	if l.cfg.TurnsPerWindow <= 0 || l.cfg.Window <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{
			available:  float64(l.cfg.TurnsPerWindow),
			lastRefill: now,
		}
		l.buckets[userID] = b
	}
	l.refill(b, now)

	if b.available < 1 {
		return false
	}
	b.available--
	return true
}

// Remaining reports how many turns the user has left right now.
func (l *Limiter) Remaining(userID string) int {
	if l.cfg.TurnsPerWindow <= 0 || l.cfg.Window <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[userID]
	if !ok {
		return l.cfg.TurnsPerWindow
	}
	l.refill(b, l.nowFunc())
	return int(b.available)
}

func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	rate := float64(l.cfg.TurnsPerWindow) / float64(l.cfg.Window)
	b.available += rate * float64(elapsed)
	if max := float64(l.cfg.TurnsPerWindow); b.available > max {
		b.available = max
	}
	b.lastRefill = now
}
