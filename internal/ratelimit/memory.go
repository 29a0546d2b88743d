package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultCapacity bounds the number of clients a MemoryStore tracks.
const DefaultCapacity = 10000

// MemoryStore is an in-process Store.
//
// The client map is guarded by mu; each client's timestamps are guarded by
// that client's own mutex, so requests from different clients never wait on
// each other's window arithmetic. Lock order is always mu, then a client's mu.
//
// Only clients whose windows are empty are ever dropped. When every tracked
// client still has live requests and the store is full, new clients share
// one overflow window, guarded by mu, that carries the same quota. Each
// overflow entry remembers its client, and those entries seed the client's
// own window once a slot frees up, so no client can exceed the quota by
// moving between the two.
type MemoryStore struct {
	policy   Policy
	capacity int

	mu       sync.Mutex
	clients  map[string]*clientWindow
	overflow []overflowEntry
	// noneEmptyUntil is the earliest time a tracked window can become empty
	// after a sweep that removed nothing.
	noneEmptyUntil time.Time
}

type clientWindow struct {
	mu     sync.Mutex
	stamps []time.Time
	// evicted is set once the window has been dropped from the map; a caller
	// holding a stale pointer must look the key up again.
	evicted bool
}

type overflowEntry struct {
	key string
	at  time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCapacity sets the maximum number of tracked clients.
func WithCapacity(n int) MemoryOption {
	return func(s *MemoryStore) { s.capacity = n }
}

func NewMemoryStore(p Policy, opts ...MemoryOption) (*MemoryStore, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	s := &MemoryStore{
		policy:   p,
		capacity: DefaultCapacity,
		clients:  make(map[string]*clientWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	for {
		w, dec, tracked := s.window(key, now)
		if !tracked {
			return dec, nil
		}
		w.mu.Lock()
		if w.evicted {
			w.mu.Unlock()
			continue
		}
		dec = w.admit(now, s.policy)
		w.mu.Unlock()
		return dec, nil
	}
}

func (w *clientWindow) admit(now time.Time, p Policy) Decision {
	w.stamps = prune(w.stamps, now, p.Window)
	if len(w.stamps) >= p.MaxRequests {
		return Decision{Allowed: false, Count: len(w.stamps)}
	}
	w.stamps = append(w.stamps, now)
	return Decision{Allowed: true, Count: len(w.stamps)}
}

// prune drops every timestamp whose age is at least window. Concurrent
// callers may append slightly out of order, so the whole slice is filtered.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := stamps[:0]
	for _, t := range stamps {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	return kept
}

// window returns the tracked window for key. When the store is full of live
// windows the request is decided against the overflow window instead and
// tracked is false.
func (s *MemoryStore) window(key string, now time.Time) (w *clientWindow, dec Decision, tracked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.clients[key]; ok {
		return w, Decision{}, true
	}
	if s.capacity > 0 && len(s.clients) >= s.capacity {
		if now.Before(s.noneEmptyUntil) || s.sweepLocked(now) == 0 {
			return nil, s.admitOverflowLocked(key, now), false
		}
	}
	w = &clientWindow{stamps: s.takeOverflowLocked(key, now)}
	s.clients[key] = w
	return w, Decision{}, true
}

func (s *MemoryStore) pruneOverflowLocked(now time.Time) {
	kept := s.overflow[:0]
	for _, e := range s.overflow {
		if now.Sub(e.at) < s.policy.Window {
			kept = append(kept, e)
		}
	}
	s.overflow = kept
}

func (s *MemoryStore) admitOverflowLocked(key string, now time.Time) Decision {
	s.pruneOverflowLocked(now)
	if len(s.overflow) >= s.policy.MaxRequests {
		return Decision{Allowed: false, Count: len(s.overflow)}
	}
	s.overflow = append(s.overflow, overflowEntry{key: key, at: now})
	return Decision{Allowed: true, Count: len(s.overflow)}
}

// takeOverflowLocked removes key's live overflow entries and returns their
// timestamps.
func (s *MemoryStore) takeOverflowLocked(key string, now time.Time) []time.Time {
	s.pruneOverflowLocked(now)
	var stamps []time.Time
	kept := s.overflow[:0]
	for _, e := range s.overflow {
		if e.key == key {
			stamps = append(stamps, e.at)
			continue
		}
		kept = append(kept, e)
	}
	s.overflow = kept
	return stamps
}

// Sweep removes every client whose window is empty at now and reports how
// many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	var earliest time.Time
	for key, w := range s.clients {
		w.mu.Lock()
		w.stamps = prune(w.stamps, now, s.policy.Window)
		if len(w.stamps) == 0 {
			w.evicted = true
			delete(s.clients, key)
			removed++
		} else {
			for _, t := range w.stamps {
				if earliest.IsZero() || t.Before(earliest) {
					earliest = t
				}
			}
		}
		w.mu.Unlock()
	}
	s.pruneOverflowLocked(now)
	if removed == 0 && !earliest.IsZero() {
		s.noneEmptyUntil = earliest.Add(s.policy.Window)
	} else {
		s.noneEmptyUntil = time.Time{}
	}
	return removed
}

// Len returns the number of tracked clients.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// RunJanitor sweeps idle clients every interval until ctx is cancelled.
func (s *MemoryStore) RunJanitor(ctx context.Context, every time.Duration, now func() time.Time) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(now())
		}
	}
}
