// Package kv specifies the distributed lock, counter, and small-TTL-cache
// contract the core depends on, plus an in-memory implementation suitable
// for single-process deployments and tests. A production multi-replica
// deployment supplies a Redis/etcd-backed implementation of the same
// interface; this package does not ship one, since the distributed-lock and
// rate-limiter primitives are specified only by contract.
package kv

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Store is the contract the scheduler and sync locks, token refresh
// backoff, poll-failure counters, and provider show-metadata cache are all
// built against.
type Store interface {
	// TryLock attempts to acquire a singleton lock under key for ttl. If
	// acquired, ok is true and release must be called to free it early
	// (it also expires automatically after ttl). If already held, ok is
	// false and release is a no-op.
	TryLock(key string, ttl time.Duration) (release func(), ok bool)

	// Incr increments the integer counter at key by 1, refreshing its TTL
	// to ttl on every call, and returns the new value. The counter expires
	// once ttl passes with no further Incr.
	Incr(key string, ttl time.Duration) int64

	// Reset clears the counter or cached value at key, if present.
	Reset(key string)

	// Get returns the cached value at key and whether it was present and
	// not expired.
	Get(key string) (value any, ok bool)

	// Set stores value at key with the given ttl.
	Set(key string, value any, ttl time.Duration)

	// Del removes the value at key, if present.
	Del(key string)
}

type entry struct {
	value    any
	expireAt time.Time
	locked   bool
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemStore is an in-memory Store backed by a lock-free concurrent map
// (xsync.Map) rather than a map behind a single mutex.
type MemStore struct {
	entries *xsync.Map[string, *entry]
	now     func() time.Time
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		entries: xsync.NewMap[string, *entry](),
		now:     time.Now,
	}
}

// TryLock implements Store.
func (s *MemStore) TryLock(key string, ttl time.Duration) (func(), bool) {
	now := s.now()
	e := &entry{locked: true, expireAt: now.Add(ttl)}

	acquired := false
	s.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if loaded && old.locked && !old.expired(now) {
			acquired = false
			return old, xsync.CancelOp
		}
		acquired = true
		return e, xsync.UpdateOp
	})

	if !acquired {
		return func() {}, false
	}
	release := func() {
		s.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
			if !loaded || old != e {
				return old, xsync.CancelOp
			}
			return nil, xsync.DeleteOp
		})
	}
	return release, true
}

// Incr implements Store.
func (s *MemStore) Incr(key string, ttl time.Duration) int64 {
	now := s.now()
	var result int64
	s.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		var count int64
		if loaded && !old.expired(now) {
			if n, ok := old.value.(int64); ok {
				count = n
			}
		}
		count++
		result = count
		return &entry{value: count, expireAt: now.Add(ttl)}, xsync.UpdateOp
	})
	return result
}

// Reset implements Store.
func (s *MemStore) Reset(key string) {
	s.entries.Delete(key)
}

// Get implements Store.
func (s *MemStore) Get(key string) (any, bool) {
	e, ok := s.entries.Load(key)
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		s.entries.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set implements Store.
func (s *MemStore) Set(key string, value any, ttl time.Duration) {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = s.now().Add(ttl)
	}
	s.entries.Store(key, &entry{value: value, expireAt: expireAt})
}

// Del implements Store.
func (s *MemStore) Del(key string) {
	s.entries.Delete(key)
}
