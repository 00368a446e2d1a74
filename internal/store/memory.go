package store

import (
	"context"
	"sync"
	"time"

	"mulabo.app/chatbot/internal/model"
)

// MemorySessionStore keeps sessions in-process. It is the default backend;
// state does not survive a restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*model.Session),
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, userID string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *MemorySessionStore) Put(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneSession(session)
	stored.UpdatedAt = time.Now()
	s.sessions[session.UserID] = stored
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// cloneSession copies the session and its conversation slice so callers
// cannot mutate stored state behind the store's back.
func cloneSession(sess *model.Session) *model.Session {
	out := *sess
	out.Conversation = make([]model.Message, len(sess.Conversation))
	copy(out.Conversation, sess.Conversation)
	return &out
}
