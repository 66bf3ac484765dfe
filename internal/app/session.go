package app

import (
	"sync"
	"time"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

// Session is the in-memory state of respondents moving through one survey.
type Session struct {
	surveyID     int64
	createdAt    time.Time
	lastActivity time.Time
	now          func() time.Time
	mu          sync.RWMutex
	respondents map[string]*respondent
	completed   int
	answers     int
	subscribers map[chan domain.Progress]struct{}
}

type respondent struct {
	id          string
	current     int64
	completed   bool
	connected   bool
	answered    []int64
	lastUpdated time.Time
}

// NewSessionWithClock creates a session whose timestamps and idleness follow now.
// Session stores pass their own clock so eviction and snapshots agree.
func NewSessionWithClock(surveyID int64, now func() time.Time) *Session {
	return newSessionWithClock(surveyID, now)
}

func newSessionWithClock(surveyID int64, now func() time.Time) *Session {
	created := now()
	return &Session{
		surveyID:     surveyID,
		createdAt:    created,
		lastActivity: created,
		now:          now,
		respondents:  make(map[string]*respondent),
		subscribers:  make(map[chan domain.Progress]struct{}),
	}
}

// start registers a respondent on firstQuestionID, or reconnects a returning
// respondent where they left off.
func (s *Session) start(respondentID string, firstQuestionID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.lastActivity = now
	r, ok := s.respondents[respondentID]
	if !ok {
		r = &respondent{id: respondentID, current: firstQuestionID}
		s.respondents[respondentID] = r
	}
	r.connected = true
	r.lastUpdated = now
	s.broadcastLocked()
	return r.current, r.completed
}

// position reports the question a respondent must answer next.
func (s *Session) position(respondentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.respondents[respondentID]
	if !ok {
		return 0, domain.ErrRespondentNotFound
	}
	if r.completed {
		return 0, domain.ErrSurveyCompleted
	}
	return r.current, nil
}

// advance moves the respondent past questionID, provided they are still on it.
func (s *Session) advance(respondentID string, questionID int64, target flow.Target) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.respondents[respondentID]
	if !ok {
		return domain.Progress{}, domain.ErrRespondentNotFound
	}
	if r.completed {
		return domain.Progress{}, domain.ErrSurveyCompleted
	}
	if r.current != questionID {
		return domain.Progress{}, domain.ErrUnexpectedQuestion
	}

	r.answered = append(r.answered, questionID)
	r.lastUpdated = s.now()
	s.lastActivity = r.lastUpdated
	s.answers++
	if target.End {
		r.completed = true
		r.current = 0
		s.completed++
	} else {
		r.current = target.QuestionID
	}
	return s.broadcastLocked(), nil
}

// leave disconnects a respondent. Their position and completion stay recorded.
func (s *Session) leave(respondentID string) domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.respondents[respondentID]; ok {
		r.connected = false
		r.lastUpdated = s.now()
		s.lastActivity = r.lastUpdated
	}
	return s.broadcastLocked()
}

// Idle reports whether nobody is connected and nothing has happened since cutoff.
func (s *Session) Idle(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.respondents {
		if r.connected {
			return false
		}
	}
	return !s.lastActivity.After(cutoff)
}

// Progress returns the current snapshot.
func (s *Session) Progress() domain.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) subscribe() (<-chan domain.Progress, func()) {
	ch := make(chan domain.Progress, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.Progress {
	p := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- p:
		default:
			// Slow subscriber: drop its oldest snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
	return p
}

func (s *Session) snapshotLocked() domain.Progress {
	active := 0
	for _, r := range s.respondents {
		if r.connected && !r.completed {
			active++
		}
	}
	return domain.Progress{
		SurveyID:        s.surveyID,
		ActiveCount:     active,
		CompletedCount:  s.completed,
		AnswersRecorded: s.answers,
		UpdatedAt:       s.now(),
	}
}
