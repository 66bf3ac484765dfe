package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"survey-flow-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository. Sessions
// outlive their respondents' connections until EvictIdle drops them.
type SessionStore struct {
	now      func() time.Time
	mu       sync.RWMutex
	sessions map[int64]*app.Session
}

func NewSessionStore() *SessionStore {
	return newSessionStoreWithClock(time.Now)
}

func newSessionStoreWithClock(now func() time.Time) *SessionStore {
	return &SessionStore{now: now, sessions: make(map[int64]*app.Session)}
}

func (s *SessionStore) GetOrCreate(surveyID int64) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[surveyID]
	if !ok {
		session = app.NewSessionWithClock(surveyID, s.now)
		s.sessions[surveyID] = session
	}
	return session
}

func (s *SessionStore) Get(surveyID int64) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[surveyID]
	return session, ok
}

func (s *SessionStore) EvictIdle(_ context.Context, idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, session := range s.sessions {
		if session.Idle(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *SessionStore) ActiveSurveys(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
