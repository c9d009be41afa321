// Package snapshot implements the process-wide probe result cache described
// in spec.md §4.3: a keyed TTL store guarded by a short-held mutex, with
// concurrent same-key misses collapsed via singleflight so only one
// subprocess spawn happens per cache miss regardless of how many requests
// are waiting on it.
package snapshot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sysdesk/internal/probe"
)

// entry is one cached probe result.
type entry struct {
	result    probe.Result
	parsed    probe.ParsedData
	capturedAt time.Time
	expiresAt  time.Time // zero value means never expires
}

func (e entry) fresh(now time.Time, maxAge time.Duration) bool {
	// maxAge == 0 means "bypass the cache" (spec.md §8.3), not "unlimited
	// age" — every lookup with maxAge == 0 must miss so the caller re-runs
	// the probe.
	if maxAge <= 0 {
		return false
	}
	if now.Sub(e.capturedAt) > maxAge {
		return false
	}
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		return false
	}
	return true
}

// Store is the process-global snapshot cache. The zero value is not usable;
// construct with New.
type Store struct {
	mu      sync.RWMutex
	entries map[probe.ID]entry
	group   singleflight.Group
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[probe.ID]entry)}
}

// Lookup returns the cached result for id if it satisfies invariant C1
// (spec.md §3.3: now - captured_at <= maxAge AND now < expires_at).
func (s *Store) Lookup(id probe.ID, now time.Time, maxAge time.Duration) (probe.Result, probe.ParsedData, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || !e.fresh(now, maxAge) {
		return probe.Result{}, probe.ParsedData{}, false
	}
	return e.result, e.parsed, true
}

// LookupStale returns the cached result for id regardless of freshness,
// along with how long ago it was captured. Used only by the fast-path
// handler's force=true degrade mode (spec.md §4.4 "Timeouts": compose a
// "last cached snapshot" answer rather than refuse).
func (s *Store) LookupStale(id probe.ID, now time.Time) (probe.Result, probe.ParsedData, time.Duration, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return probe.Result{}, probe.ParsedData{}, 0, false
	}
	return e.result, e.parsed, now.Sub(e.capturedAt), true
}

// Store records a fresh result for id with the given TTL class.
func (s *Store) Store(id probe.ID, result probe.Result, parsed probe.ParsedData, ttl probe.TTLClass, now time.Time) {
	e := entry{result: result, parsed: parsed, capturedAt: now}
	switch ttl {
	case probe.Slow:
		e.expiresAt = now.Add(300 * time.Second)
	case probe.Fast:
		e.expiresAt = now.Add(30 * time.Second)
	case probe.Static:
		// expiresAt left zero: never expires.
	}
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
}

// GetOrRun returns a fresh cached result for id, or runs run exactly once
// across any number of concurrent callers missing the same id (spec.md §5:
// "lock hold times are short... never span I/O" — the mutex here only ever
// guards map access; the I/O happens inside singleflight's de-duplicated
// call, outside any lock).
func (s *Store) GetOrRun(ctx context.Context, id probe.ID, maxAge time.Duration, now time.Time, run func(context.Context) (probe.Result, probe.ParsedData, probe.TTLClass, error)) (probe.Result, probe.ParsedData, error) {
	if res, parsed, ok := s.Lookup(id, now, maxAge); ok {
		return res, parsed, nil
	}

	type outcome struct {
		result probe.Result
		parsed probe.ParsedData
	}

	v, err, _ := s.group.Do(string(id), func() (any, error) {
		// Re-check under the singleflight key: another caller may have
		// populated the cache while we were waiting to become leader.
		if res, parsed, ok := s.Lookup(id, now, maxAge); ok {
			return outcome{res, parsed}, nil
		}
		res, parsed, ttl, err := run(ctx)
		if err != nil {
			return outcome{}, err
		}
		s.Store(id, res, parsed, ttl, now)
		return outcome{res, parsed}, nil
	})
	if err != nil {
		return probe.Result{}, probe.ParsedData{}, err
	}
	o := v.(outcome)
	return o.result, o.parsed, nil
}

// Invalidate drops every cached entry whose probe id has the given prefix.
// Exposed for external collaborators that know a state change occurred
// (spec.md §4.3); the core request pipeline never calls this itself.
func (s *Store) Invalidate(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.entries {
		if len(prefix) <= len(id) && string(id)[:len(prefix)] == prefix {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries, for tests and status reporting.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
