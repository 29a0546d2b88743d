// Package ratelimit implements a per-client sliding-window request limiter.
//
// Every client key owns the timestamps of its accepted requests. A request at
// time now first discards timestamps t with now-t >= Window; it is rejected
// when MaxRequests timestamps remain, otherwise now is recorded and the
// request passes. Rejected attempts are never recorded.
//
// Two backends share this contract:
//
//   - MemoryStore keeps windows in-process with one mutex per client and a
//     bounded number of clients.
//   - RedisStore keeps each window in a sorted set and runs the
//     prune-count-append sequence as one Lua script, so replicas share a
//     single budget per client.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

// Policy is the quota applied to every client.
type Policy struct {
	MaxRequests int
	Window      time.Duration
}

func (p Policy) validate() error {
	if p.MaxRequests < 1 {
		return errors.New("ratelimit: MaxRequests must be positive")
	}
	if p.Window <= 0 {
		return errors.New("ratelimit: Window must be positive")
	}
	return nil
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Count is the number of requests in the client's window after the check.
	Count int
}

// Store admits or rejects a request from key arriving at now.
// Implementations must make the check atomic per key.
type Store interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// Limiter binds a Store to a clock.
type Limiter struct {
	store Store
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow returns nil when the request from key may proceed and
// domain.ErrRateLimited when the client is over quota. Any other error comes
// from the backing store.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	dec, err := l.store.Allow(ctx, key, l.now())
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return domain.ErrRateLimited
	}
	return nil
}
