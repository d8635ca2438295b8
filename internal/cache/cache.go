package cache

import (
	"sync"
	"time"
)

type entry struct {
	val     any
	expires time.Time
}

// Store is a time-boxed key/value store used to skip redundant remote
// reads between portal navigations. It is constructed in main and
// injected where needed; there is no package-level instance.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key if present and not expired. Expired
// entries are removed on read.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expires) {
		delete(s.entries, key)
		return nil, false
	}
	return e.val, true
}

// Set stores val under key with the store's default TTL.
func (s *Store) Set(key string, val any) {
	s.SetTTL(key, val, s.ttl)
}

func (s *Store) SetTTL(key string, val any, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = entry{val: val, expires: s.now().Add(ttl)}
	s.mu.Unlock()
}

func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Reset drops every entry. Called on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Sweep removes expired entries and returns how many were dropped.
// Run periodically so abandoned keys don't pile up.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}
