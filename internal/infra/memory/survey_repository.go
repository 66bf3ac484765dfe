package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"survey-flow-service/internal/domain"
)

// SurveyLoader fetches survey content from a backing store (e.g., Postgres or Mongo).
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, surveyID int64) (domain.Survey, error)
}

// SurveyRepository caches surveys with TTL to avoid repeated DB hits.
type SurveyRepository struct {
	loader SurveyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int64]cachedSurvey
}

type cachedSurvey struct {
	survey    domain.Survey
	expiresAt time.Time
}

func NewSurveyRepository(loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedSurvey),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, surveyID int64) (domain.Survey, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[surveyID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.survey, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(sfKey(surveyID), func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[surveyID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.survey, nil
		}
		r.mu.RUnlock()

		survey, err := r.loader.LoadSurvey(ctx, surveyID)
		if err != nil {
			return domain.Survey{}, err
		}

		r.mu.Lock()
		r.cache[surveyID] = cachedSurvey{
			survey:    survey,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

// Invalidate evicts a cached survey.
func (r *SurveyRepository) Invalidate(_ context.Context, surveyID int64) error {
	r.mu.Lock()
	delete(r.cache, surveyID)
	r.mu.Unlock()
	return nil
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func sfKey(surveyID int64) string {
	return "survey:" + strconv.FormatInt(surveyID, 10)
}

// StaticSurveyLoader is a simple loader backed by an in-memory map (useful for tests/demos).
// It also records activation, so it doubles as an app.SurveyActivator.
type StaticSurveyLoader struct {
	mu      sync.RWMutex
	surveys map[int64]domain.Survey
}

func NewStaticSurveyLoader(surveys map[int64]domain.Survey) *StaticSurveyLoader {
	copied := make(map[int64]domain.Survey, len(surveys))
	for id, s := range surveys {
		copied[id] = s
	}
	return &StaticSurveyLoader{surveys: copied}
}

func (l *StaticSurveyLoader) LoadSurvey(_ context.Context, surveyID int64) (domain.Survey, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if survey, ok := l.surveys[surveyID]; ok {
		return survey, nil
	}
	return domain.Survey{}, domain.ErrSurveyNotFound
}

func (l *StaticSurveyLoader) SetActive(_ context.Context, surveyID int64, active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	survey, ok := l.surveys[surveyID]
	if !ok {
		return domain.ErrSurveyNotFound
	}
	survey.Active = active
	l.surveys[surveyID] = survey
	return nil
}
