package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is one browser's key-value session. It implements ports.Session.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.values)
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

// Registry hands out sessions by opaque id and drops idle ones.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*entry
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Registry{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Lookup returns the live session for id and refreshes its idle timer.
func (r *Registry) Lookup(id string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(e.lastSeen) > r.ttl {
		delete(r.entries, id)
		return nil, false
	}
	e.lastSeen = now
	return e.store, true
}

// Alive reports whether id is a live session without refreshing it.
func (r *Registry) Alive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return ok && r.now().Sub(e.lastSeen) <= r.ttl
}

func (r *Registry) Create() (string, *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	store := NewStore()
	r.entries[id] = &entry{store: store, lastSeen: r.now()}
	return id, store
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Sweep removes every session idle for longer than the ttl.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
