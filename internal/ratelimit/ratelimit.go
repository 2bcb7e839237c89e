// Package ratelimit provides a keyed token bucket limiter. The API uses
// it to bound expensive per-client work such as PDF rasterisation and
// archive imports.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxIdle    = 15 * time.Minute
	defaultSweepEvery = 5 * time.Minute
)

// KeyedRateLimiter manages one token bucket per key. Keys are client
// addresses, so entries are swept after a period of inactivity rather
// than kept forever.
type KeyedRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int

	maxIdle    time.Duration
	sweepEvery time.Duration
	done       chan struct{}
	stopOnce   sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// New creates a keyed limiter allowing rps requests per second with the
// given burst per key.
func New(rps float64, burst int) *KeyedRateLimiter {
	return newKeyed(rps, burst, defaultMaxIdle, defaultSweepEvery)
}

func newKeyed(rps float64, burst int, maxIdle, sweepEvery time.Duration) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters:   make(map[string]*clientLimiter),
		limit:      rate.Limit(rps),
		burst:      burst,
		maxIdle:    maxIdle,
		sweepEvery: sweepEvery,
		done:       make(chan struct{}),
	}

	go krl.sweepLoop()

	return krl
}

// Allow reports whether a request for the key may proceed right now.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.get(key).Allow()
}

// Wait blocks until a request for the key is allowed or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.get(key).Wait(ctx)
}

// Len reports the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.RLock()
	defer krl.mu.RUnlock()
	return len(krl.limiters)
}

// Stop ends the sweep goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

func (krl *KeyedRateLimiter) get(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	krl.mu.RLock()
	cl, ok := krl.limiters[key]
	krl.mu.RUnlock()
	if ok {
		cl.lastSeen.Store(now)
		return cl.limiter
	}

	krl.mu.Lock()
	defer krl.mu.Unlock()

	// Another caller may have created it between the locks.
	if cl, ok = krl.limiters[key]; ok {
		cl.lastSeen.Store(now)
		return cl.limiter
	}

	cl = &clientLimiter{limiter: rate.NewLimiter(krl.limit, krl.burst)}
	cl.lastSeen.Store(now)
	krl.limiters[key] = cl
	return cl.limiter
}

func (krl *KeyedRateLimiter) sweepLoop() {
	ticker := time.NewTicker(krl.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.sweep(time.Now().Add(-krl.maxIdle))
		}
	}
}

// sweep drops keys not seen since the cutoff.
func (krl *KeyedRateLimiter) sweep(cutoff time.Time) {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	for key, cl := range krl.limiters {
		if cl.lastSeen.Load() < cutoff.UnixNano() {
			delete(krl.limiters, key)
		}
	}
}
