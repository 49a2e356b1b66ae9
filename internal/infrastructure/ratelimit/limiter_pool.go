// Package ratelimit throttles login attempts per client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterConfig holds configuration for the limiters of a pool.
type LimiterConfig struct {
	// PerMinute is the sustained number of requests allowed per key
	PerMinute int
	// Burst is the number of requests a key may send back to back
	Burst int
	// MaxIdle is how long an unused limiter is kept
	MaxIdle time.Duration
}

// LimiterPool manages one token bucket limiter per client key with automatic cleanup.
type LimiterPool struct {
	mu       sync.RWMutex
	limiters map[string]*limiterEntry
	config   LimiterConfig
	now      func() time.Time
}

// limiterEntry wraps a limiter with metadata.
type limiterEntry struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastUsed time.Time
}

// NewLimiterPool creates a new limiter pool.
//
// Parameters:
//   - config: Configuration for new limiters; Burst falls back to PerMinute
//
// Returns:
//   - *LimiterPool: Initialized pool
func NewLimiterPool(config LimiterConfig) *LimiterPool {
	if config.Burst <= 0 {
		config.Burst = config.PerMinute
	}
	if config.MaxIdle <= 0 {
		config.MaxIdle = 10 * time.Minute
	}
	return &LimiterPool{
		limiters: make(map[string]*limiterEntry),
		config:   config,
		now:      time.Now,
	}
}

// Allow consumes one token for key. When the key is over its limit it
// reports how long the client should wait.
func (p *LimiterPool) Allow(key string) (bool, time.Duration) {
	now := p.now()
	entry := p.getOrCreate(key, now)

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// getOrCreate gets an existing limiter or creates a new one.
func (p *LimiterPool) getOrCreate(key string, now time.Time) *limiterEntry {
	p.mu.RLock()
	entry, exists := p.limiters[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double-check after acquiring write lock
		if entry, exists = p.limiters[key]; !exists {
			entry = &limiterEntry{
				limiter: rate.NewLimiter(rate.Limit(float64(p.config.PerMinute)/60.0), p.config.Burst),
			}
			p.limiters[key] = entry
		}
		p.mu.Unlock()
	}

	entry.mu.Lock()
	entry.lastUsed = now
	entry.mu.Unlock()
	return entry
}

// Cleanup removes limiters that haven't been used for MaxIdle.
//
// Returns:
//   - int: Number of limiters removed
func (p *LimiterPool) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	removed := 0
	for key, entry := range p.limiters {
		entry.mu.Lock()
		idle := now.Sub(entry.lastUsed)
		entry.mu.Unlock()
		if idle > p.config.MaxIdle {
			delete(p.limiters, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of limiters in the pool.
func (p *LimiterPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.limiters)
}

// Run cleans up idle limiters until ctx is done.
func (p *LimiterPool) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.MaxIdle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Cleanup()
		}
	}
}
