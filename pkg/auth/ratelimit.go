package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request should be allowed for an identity.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// idleAfter is how long an unused subject bucket is kept.
const idleAfter = 10 * time.Minute

// SubjectLimiter is a token-bucket limiter keyed by subject. Each subject
// gets requestsPerMinute tokens per minute with a burst of the same size;
// tiers can override the rate.
type SubjectLimiter struct {
	defaultRPM int
	tiers      map[string]int

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSubjectLimiter creates a limiter allowing defaultRPM requests per minute
// per subject. tiers maps a service tier to its own requests per minute; a
// value of zero or less disables limiting for that tier.
func NewSubjectLimiter(defaultRPM int, tiers map[string]int) *SubjectLimiter {
	return &SubjectLimiter{
		defaultRPM: defaultRPM,
		tiers:      tiers,
		buckets:    make(map[string]*bucket),
		lastSweep:  time.Now(),
	}
}

// Allow takes one token from the identity's bucket and returns
// ErrTooManyRequests when none is left.
func (l *SubjectLimiter) Allow(_ context.Context, identity *Identity) error {
	rpm := l.defaultRPM
	if tierRPM, ok := l.tiers[identity.ServiceTier]; ok {
		rpm = tierRPM
	}
	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + identity.ServiceTier
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > idleAfter {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60), rpm)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	if !b.limiter.AllowN(now, 1) {
		return ErrTooManyRequests
	}
	return nil
}
