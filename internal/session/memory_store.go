package session

import (
	"context"
	"sync"
	"time"

	"login-gate/internal/logger"
)

// DefaultCleanupInterval is how often expired sessions are swept.
const DefaultCleanupInterval = time.Minute

// MemoryStore keeps sessions in a process-local map. All access is
// serialized through mu, so each method is atomic with respect to the
// others. Expired entries are hidden by Get and swept in the background.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session

	cleanupInterval time.Duration
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	now             func() time.Time
}

// NewMemoryStore creates an in-memory store with the default cleanup interval.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithInterval(DefaultCleanupInterval)
}

// NewMemoryStoreWithInterval creates an in-memory store with a custom
// cleanup interval.
func NewMemoryStoreWithInterval(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &MemoryStore{
		sessions:        make(map[string]Session),
		cleanupInterval: interval,
		stopChan:        make(chan struct{}),
		now:             time.Now,
	}
}

// StartCleanup starts the background sweep. Stop it with Stop or by
// cancelling ctx.
func (s *MemoryStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

func (s *MemoryStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cleaned := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		logger.Debug("expired sessions removed", map[string]any{
			"count": cleaned,
		})
	}
	return cleaned
}

// Stop stops the cleanup goroutine and waits for it. Safe to call twice.
func (s *MemoryStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *MemoryStore) Create(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.SessionID]; ok {
		return ErrExists
	}
	s.sessions[sess.SessionID] = sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok || sess.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.LastAccessAt = at
	s.sessions[sessionID] = sess
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the cleanup goroutine and drops all sessions.
func (s *MemoryStore) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]Session)
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
