// Package bot – flood protection
//
// This file implements a lightweight, in-memory, token-bucket limiter with
// per-chat buckets and opportunistic garbage collection. It sits at the
// transport edge and silently drops a chat's updates once that chat burns
// through its bucket, so a stuck finger on /start cannot monopolize the
// dispatch loop. The relay pulse path is deliberately not limited here;
// pulses are already serialized per user by the session store.
//
// The limiter is process-local and intended for abuse control only.
package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// chatBucket holds a single rate limiter and the last time it was seen.
// Used to opportunistically evict idle buckets.
type chatBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// floodLimiter implements a per-chat token-bucket limiter.
//
// Buckets are created on demand and stored in an internal map guarded by a
// mutex. Idle buckets are evicted after a TTL via opportunistic cleanup
// during lookups to keep memory usage bounded.
//
// This type is safe for concurrent use.
type floodLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[int64]*chatBucket

	ttl      time.Duration
	cleanupN uint64
}

// newFloodLimiter constructs a floodLimiter with the given tokens-per-second
// and burst size. burst values <= 0 are coerced to 1.
func newFloodLimiter(rps float64, burst int) *floodLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &floodLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[int64]*chatBucket),
		ttl:     10 * time.Minute, // evict idle entries after TTL
	}
}

// Allow reports whether chatID may proceed, consuming one token.
func (fl *floodLimiter) Allow(chatID int64) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	fl.cleanupN++
	if fl.cleanupN%256 == 0 {
		cutoff := time.Now().Add(-fl.ttl)
		for id, b := range fl.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(fl.buckets, id)
			}
		}
	}

	b, ok := fl.buckets[chatID]
	if !ok {
		b = &chatBucket{limiter: rate.NewLimiter(fl.rps, fl.burst)}
		fl.buckets[chatID] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}
