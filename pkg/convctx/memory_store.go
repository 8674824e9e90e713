package convctx

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store, suitable for tests and single-node
// deployments that do not need context to survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Context
}

// NewMemoryStore creates an empty in-memory context store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Context)}
}

func sessionKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}

// Context returns the stored context for the session, or a zero value.
func (s *MemoryStore) Context(_ context.Context, userID, sessionID string) (Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionKey(userID, sessionID)], nil
}

// UpdateFromIntent overwrites context fields from the intent's slots.
func (s *MemoryStore) UpdateFromIntent(_ context.Context, userID, sessionID, intentName string, slots map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(userID, sessionID)
	c := s.sessions[key]
	applySlots(&c, intentName, slots)
	s.sessions[key] = c
	return nil
}
