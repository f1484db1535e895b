// Package ratelimit implements the per-(provider,user) token bucket the
// scheduler and operations router consult before dispatching outbound work.
package ratelimit

import (
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	"github.com/ejohane/zine-sub/internal/model"
)

// Limiter holds one token bucket per (provider, userId), created lazily on
// first use and kept in a lock-free concurrent map for the lifetime of the
// process.
type Limiter struct {
	buckets *xsync.Map[string, *rate.Limiter]
	rateFor func(provider model.Provider) (rate.Limit, int)
}

// DefaultRates returns the provider poll-call budgets used in production:
// generous enough that a healthy user is never throttled by this limiter
// under normal polling cadence, but enough to shed load if a user's
// subscriptions are polled in a tight retry loop.
func DefaultRates(provider model.Provider) (rate.Limit, int) {
	switch provider {
	case model.ProviderYouTube:
		return rate.Limit(1), 5
	case model.ProviderSpotify:
		return rate.Limit(1), 5
	default:
		return rate.Limit(1), 10
	}
}

// New creates a Limiter using the given per-provider rate function. A nil
// rateFor defaults to DefaultRates.
func New(rateFor func(provider model.Provider) (rate.Limit, int)) *Limiter {
	if rateFor == nil {
		rateFor = DefaultRates
	}
	return &Limiter{
		buckets: xsync.NewMap[string, *rate.Limiter](),
		rateFor: rateFor,
	}
}

// Allow reports whether a call for (provider, userId) may proceed right
// now, consuming one token from that pair's bucket if so.
func (l *Limiter) Allow(provider model.Provider, userID string) bool {
	return l.bucketFor(provider, userID).Allow()
}

func (l *Limiter) bucketFor(provider model.Provider, userID string) *rate.Limiter {
	key := string(provider) + ":" + userID
	if b, ok := l.buckets.Load(key); ok {
		return b
	}
	b, _ := l.buckets.Compute(key, func(old *rate.Limiter, loaded bool) (*rate.Limiter, xsync.ComputeOp) {
		if loaded {
			return old, xsync.CancelOp
		}
		limit, burst := l.rateFor(provider)
		return rate.NewLimiter(limit, burst), xsync.UpdateOp
	})
	return b
}
