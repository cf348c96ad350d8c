package auth

import (
	"sync"
	"time"
)

// RateLimitConfig bounds failed bearer-token attempts per client.
type RateLimitConfig struct {
	MaxAttempts     int           // failures within WindowDuration before a lockout (default: 5)
	WindowDuration  time.Duration // default: 15m
	LockoutDuration time.Duration // default: 30m
	CleanupInterval time.Duration // default: 5m
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = 15 * time.Minute
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 30 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	return c
}

// RateLimiter locks out clients, keyed by IP, after repeated invalid tokens.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*failureWindow

	stop     chan struct{}
	stopOnce sync.Once
}

type failureWindow struct {
	failures    int
	start       time.Time
	lockedUntil time.Time
}

// expired reports whether w carries no information any more at now.
func (w *failureWindow) expired(now time.Time, window time.Duration) bool {
	return now.Sub(w.start) > window && !now.Before(w.lockedUntil)
}

// NewRateLimiter starts a limiter with a background sweep of stale clients.
// Call Stop to end the sweep.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		clients: make(map[string]*failureWindow),
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow reports whether key may attempt authentication, and otherwise how
// long it has to wait.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[key]
	if !ok {
		return true, 0
	}
	if now.Before(w.lockedUntil) {
		return false, w.lockedUntil.Sub(now)
	}
	return true, 0
}

// RecordFailure counts an invalid attempt of key. It returns true and the
// lockout length when this failure locks the client out.
func (rl *RateLimiter) RecordFailure(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) > rl.cfg.WindowDuration {
		w = &failureWindow{start: now}
		rl.clients[key] = w
	}

	w.failures++
	if w.failures < rl.cfg.MaxAttempts {
		return false, 0
	}

	w.lockedUntil = now.Add(rl.cfg.LockoutDuration)
	return true, rl.cfg.LockoutDuration
}

// RecordSuccess forgets the failures of key.
func (rl *RateLimiter) RecordSuccess(key string) {
	rl.mu.Lock()
	delete(rl.clients, key)
	rl.mu.Unlock()
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) sweep() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.clients {
		if w.expired(now, rl.cfg.WindowDuration) {
			delete(rl.clients, key)
		}
	}
}
