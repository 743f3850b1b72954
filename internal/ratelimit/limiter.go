// Package ratelimit implements the Rate Limiter (C4): a per-key token
// bucket, grounded on the original source's `crates/router/src/limiter.rs`
// and on wudi-gateway's `TokenBucket`/`shardedMap` primitives.
package ratelimit

import (
	"sync"
	"time"

	"github.com/loomrelay/gateway/internal/shard"
)

// Bucket is the per-key token-bucket state (spec §3). Tokens and LastUpdate
// are only ever touched while the owning entry's own mutex is held.
type Bucket struct {
	Tokens     float64
	LastUpdate time.Time
}

type entry struct {
	mu     sync.Mutex
	bucket Bucket
}

// Limiter enforces a token bucket per principal/token/IP key. Capacity and
// RefillPerSec are the defaults applied to keys with no override.
type Limiter struct {
	Capacity     float64
	RefillPerSec float64

	buckets *shard.Map[*entry]
	now     func() time.Time // overridable for deterministic tests
}

// New constructs a Limiter with the given default capacity and refill rate.
func New(capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		Capacity:     capacity,
		RefillPerSec: refillPerSec,
		buckets:      shard.New[*entry](),
		now:          time.Now,
	}
}

// Allow implements spec §4.4's check(key, cost): load-or-create the bucket,
// refill proportionally to elapsed time (clamped to capacity), and admit iff
// tokens >= cost. All arithmetic is float64, matching the spec exactly.
// Operations on a single key are mutually exclusive; different keys proceed
// independently thanks to per-key (sharded) locking.
func (l *Limiter) Allow(key string, cost float64) bool {
	e := l.buckets.GetOrCreate(key, func() *entry {
		return &entry{bucket: Bucket{Tokens: l.Capacity, LastUpdate: l.now()}}
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(e.bucket.LastUpdate).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	e.bucket.Tokens = min(l.Capacity, e.bucket.Tokens+elapsed*l.RefillPerSec)
	e.bucket.LastUpdate = now

	if e.bucket.Tokens >= cost {
		e.bucket.Tokens -= cost
		return true
	}
	return false
}

// Snapshot returns the current bucket state for key, for tests and metrics.
func (l *Limiter) Snapshot(key string) (Bucket, bool) {
	e, ok := l.buckets.Get(key)
	if !ok {
		return Bucket{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bucket, true
}

// SetCustomLimit is a documented no-op extension point: the original source
// (crates/router/src/limiter.rs) stubs per-key override the same way, and
// spec §9's open question leaves it that way rather than inventing semantics
// the source never specified.
func (l *Limiter) SetCustomLimit(key string, capacity, refillPerSec float64) {
	_ = key
	_ = capacity
	_ = refillPerSec
}
