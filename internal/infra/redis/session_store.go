package redis

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"survey-flow-service/internal/app"
)

const sessionKeyPrefix = "survey:session:"

// SessionStore keeps survey sessions in process and publishes a liveness key per
// survey so other instances can tell which surveys have respondents in flight.
// The key expires ttl after the last lookup.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	sessions map[int64]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(surveyID int64) *app.Session {
	s.mu.Lock()
	session, ok := s.sessions[surveyID]
	if !ok {
		session = app.NewSessionWithClock(surveyID, s.now)
		s.sessions[surveyID] = session
	}
	s.mu.Unlock()

	if err := s.client.Set(context.Background(), sessionKey(surveyID), "1", s.ttl).Err(); err != nil {
		log.WithField("survey_id", surveyID).Warnf("session liveness: %v", err)
	}
	return session
}

func (s *SessionStore) Get(surveyID int64) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[surveyID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		if err := s.client.Expire(context.Background(), sessionKey(surveyID), s.ttl).Err(); err != nil {
			log.WithField("survey_id", surveyID).Warnf("session liveness refresh: %v", err)
		}
	}
	return session, ok
}

// EvictIdle drops idle local sessions and their liveness keys.
func (s *SessionStore) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	var evicted []int64
	for id, session := range s.sessions {
		if session.Idle(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	s.mu.Unlock()

	for _, id := range evicted {
		if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
			log.WithField("survey_id", id).Warnf("session liveness delete: %v", err)
		}
	}
	return len(evicted)
}

// ActiveSurveys lists surveys that have live sessions on any instance.
func (s *SessionStore) ActiveSurveys(ctx context.Context) ([]int64, error) {
	var ids []int64
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id, err := strconv.ParseInt(strings.TrimPrefix(iter.Val(), sessionKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func sessionKey(surveyID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(surveyID, 10)
}
