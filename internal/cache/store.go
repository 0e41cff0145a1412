package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps full, unoptimized responses so a summary can be drilled into
// later without contacting the cluster again. It is bounded and TTL'd like
// the response cache.
type Store struct {
	cache *Cache
	ttl   time.Duration

	mu     sync.Mutex
	lastID string
}

// NewStore creates a drill-down store.
func NewStore(maxEntries int, ttl time.Duration, opts ...Option) *Store {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		cache: New(maxEntries, ttl, opts...),
		ttl:   ttl,
	}
}

// NewID returns a short reference id.
func NewID() string {
	return uuid.NewString()[:8]
}

// Put stores data under a fresh id and marks it as the last response.
func (s *Store) Put(data interface{}) string {
	id := NewID()
	s.PutWithID(id, data)
	return id
}

// PutWithID stores data under the given id and marks it as the last response.
func (s *Store) PutWithID(id string, data interface{}) {
	s.cache.Set(id, data, s.ttl)
	s.mu.Lock()
	s.lastID = id
	s.mu.Unlock()
}

// Get returns the stored data for id.
func (s *Store) Get(id string) (interface{}, bool) {
	return s.cache.Get(id)
}

// Last returns the id of the most recent Put, which may have expired since.
func (s *Store) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	return s.cache.Stats()
}
