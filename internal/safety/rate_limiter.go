package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket throttle in front of order submission: it
// caps how many TradeIntents a PaperLedger (or a future live-broker
// collaborator) will forward per second, independent of the Risk Engine's
// MaxConcurrentPositions check.
type RateLimiter struct {
	capacity   int
	tokens     int
	refillRate int
	lastRefill time.Time
	mutex      sync.Mutex
	name       string
}

// NewRateLimiter creates a rate limiter identified by name (surfaced in
// RateLimiterStats and RateLimiterManager lookups), starting at full
// capacity and refilling refillRate tokens per second.
func NewRateLimiter(name string, capacity, refillRate int) *RateLimiter {
	return &RateLimiter{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
		name:       name,
	}
}

// Allow reports whether one order submission is allowed right now.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN reports whether n order submissions are allowed right now.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()

	if rl.tokens >= n {
		rl.tokens -= n
		return true
	}

	return false
}

// Wait blocks until one order submission is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n order submissions are allowed or ctx is done.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	for {
		if rl.AllowN(n) {
			return nil
		}

		waitTime := rl.calculateWaitTime(n)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// refillTokens adds tokens based on elapsed time. Caller must hold mutex.
func (rl *RateLimiter) refillTokens() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)

	if elapsed < time.Second {
		return
	}

	tokensToAdd := int(elapsed.Seconds()) * rl.refillRate
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = now
	}
}

// calculateWaitTime estimates how long until n tokens are available.
func (rl *RateLimiter) calculateWaitTime(n int) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()

	if rl.tokens >= n {
		return 0
	}

	tokensNeeded := n - rl.tokens
	secondsToWait := float64(tokensNeeded) / float64(rl.refillRate)

	return time.Duration(secondsToWait*1000+100) * time.Millisecond
}

// GetStats returns a snapshot of the limiter's current capacity and token count.
func (rl *RateLimiter) GetStats() RateLimiterStats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()

	return RateLimiterStats{
		Name:       rl.name,
		Capacity:   rl.capacity,
		Tokens:     rl.tokens,
		RefillRate: rl.refillRate,
		LastRefill: rl.lastRefill,
	}
}

// RateLimiterStats is a point-in-time snapshot of a RateLimiter.
type RateLimiterStats struct {
	Name       string
	Capacity   int
	Tokens     int
	RefillRate int
	LastRefill time.Time
}

// RateLimiterManager keys a set of limiters by name, one per submission
// surface (paper ledger, a live-broker adapter, ...) so each throttles
// independently of the others.
type RateLimiterManager struct {
	limiters map[string]*RateLimiter
	mutex    sync.RWMutex
}

// NewRateLimiterManager creates an empty rate limiter manager.
func NewRateLimiterManager() *RateLimiterManager {
	return &RateLimiterManager{
		limiters: make(map[string]*RateLimiter),
	}
}

// GetOrCreate gets an existing named rate limiter or creates one.
func (rlm *RateLimiterManager) GetOrCreate(name string, capacity, refillRate int) *RateLimiter {
	rlm.mutex.RLock()
	if rl, exists := rlm.limiters[name]; exists {
		rlm.mutex.RUnlock()
		return rl
	}
	rlm.mutex.RUnlock()

	rlm.mutex.Lock()
	defer rlm.mutex.Unlock()

	if rl, exists := rlm.limiters[name]; exists {
		return rl
	}

	rl := NewRateLimiter(name, capacity, refillRate)
	rlm.limiters[name] = rl
	return rl
}

// Get looks up an existing named rate limiter.
func (rlm *RateLimiterManager) Get(name string) (*RateLimiter, bool) {
	rlm.mutex.RLock()
	defer rlm.mutex.RUnlock()

	rl, exists := rlm.limiters[name]
	return rl, exists
}
