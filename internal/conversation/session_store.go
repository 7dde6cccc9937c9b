package conversation

import (
	"context"
	"sync"
	"time"
)

// SessionStore persists conversation state by session id. Implementations
// apply their own expiry; a missing or expired session reports found=false.
//
// Save is a compare-and-set on State.Version: it succeeds only when the stored
// version equals state.Version (0 for a missing or expired session), stores the
// state with the version bumped, and returns ErrSessionConflict otherwise.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (State, bool, error)
	Save(ctx context.Context, sessionID string, state State) error
}

// SessionLocker is implemented by shared stores that can serialise turns of a
// session across processes. Lock waits for the lease and returns its release func,
// or ErrSessionBusy when the lease stays taken.
type SessionLocker interface {
	Lock(ctx context.Context, sessionID string) (func(), error)
}

type memorySession struct {
	state     State
	expiresAt time.Time
}

func (m memorySession) expired(now time.Time) bool {
	return !m.expiresAt.IsZero() && now.After(m.expiresAt)
}

// MemorySessionStore keeps sessions in process memory with a sliding TTL.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore creates a store. A non-positive ttl keeps sessions forever.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Load(_ context.Context, sessionID string) (State, bool, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return State{}, false, nil
	}
	if entry.expired(s.now()) {
		s.mu.Lock()
		// a concurrent Save may have refreshed the entry since the read lock was dropped
		if current, ok := s.sessions[sessionID]; ok && current.expired(s.now()) {
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
		return State{}, false, nil
	}
	return entry.state.Clone(), true, nil
}

func (s *MemorySessionStore) Save(_ context.Context, sessionID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var stored int64
	if current, ok := s.sessions[sessionID]; ok && !current.expired(now) {
		stored = current.state.Version
	}
	if stored != state.Version {
		return ErrSessionConflict
	}

	entry := memorySession{state: state.Clone()}
	entry.state.Version = stored + 1
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.sessions[sessionID] = entry
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
