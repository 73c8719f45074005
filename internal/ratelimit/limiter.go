// Package ratelimit admits outbound requests against a per-second and/or
// per-minute ceiling, composing two token buckets so whichever is stricter
// governs at any instant.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter composes a per-second and a per-minute rate.Limiter. Either may
// be nil/unlimited; Wait blocks on whichever bucket would delay longest.
type Limiter struct {
	perSecond *rate.Limiter
	perMinute *rate.Limiter
}

// New builds a Limiter from requests-per-second and requests-per-minute
// ceilings. A ceiling of 0 means unlimited for that bucket.
func New(requestsPerSecond, requestsPerMinute float64) *Limiter {
	l := &Limiter{}
	if requestsPerSecond > 0 {
		l.perSecond = rate.NewLimiter(rate.Limit(requestsPerSecond), burstFor(requestsPerSecond))
	}
	if requestsPerMinute > 0 {
		perSecondEquivalent := requestsPerMinute / 60.0
		l.perMinute = rate.NewLimiter(rate.Limit(perSecondEquivalent), burstFor(perSecondEquivalent))
	}
	return l
}

// burstFor picks a burst size of at least 1 so a sub-1/s ceiling still
// admits its first request immediately rather than blocking on an empty
// bucket.
func burstFor(ratePerSecond float64) int {
	b := int(ratePerSecond)
	if b < 1 {
		b = 1
	}
	return b
}

// Wait blocks until both buckets (whichever are configured) admit one
// request, or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.perSecond != nil {
		if err := l.perSecond.Wait(ctx); err != nil {
			return err
		}
	}
	if l.perMinute != nil {
		if err := l.perMinute.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Unlimited reports whether neither bucket is configured, letting callers
// skip the Wait call entirely on the hot path.
func (l *Limiter) Unlimited() bool {
	return l.perSecond == nil && l.perMinute == nil
}
