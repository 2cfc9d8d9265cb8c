package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"broker-copilot/internal/shared/telemetry"
)

// Store keeps sessions in memory, evicting the least recently used beyond
// capacity and any session idle for longer than ttl.
type Store struct {
	deps  Deps
	cache *expirable.LRU[string, *Session]
}

// NewStore builds a store. Non-positive capacity or ttl fall back to 1024 and 2h.
func NewStore(capacity int, ttl time.Duration, deps Deps) *Store {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	onEvict := func(id string, _ *Session) {
		telemetry.Debug("session.evicted", map[string]any{"session_id": id})
	}
	return &Store{
		deps:  deps,
		cache: expirable.NewLRU[string, *Session](capacity, onEvict, ttl),
	}
}

// Create starts a new Idle session.
func (s *Store) Create() *Session {
	sess := New(uuid.NewString(), s.deps)
	s.cache.Add(sess.ID, sess)
	return sess
}

// Get returns the session with id, refreshing its expiry.
func (s *Store) Get(id string) (*Session, error) {
	sess, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.cache.Add(id, sess)
	return sess, nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}
