package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"survey-flow-service/internal/domain"
)

// SurveyLoader fetches survey content from a backing store (e.g., Postgres or Mongo).
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, surveyID int64) (domain.Survey, error)
}

// SurveyRepository caches whole survey snapshots in Redis and falls back to a loader on cache miss.
// Surveys are stored as: SET survey:{surveyID}:snapshot {survey JSON}
type SurveyRepository struct {
	client *redis.Client
	loader SurveyLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewSurveyRepository(client *redis.Client, loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, surveyID int64) (domain.Survey, error) {
	key := r.snapshotKey(surveyID)
	if survey, ok := r.cached(ctx, key); ok {
		return survey, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if survey, ok := r.cached(ctx, key); ok {
			return survey, nil
		}

		survey, err := r.loader.LoadSurvey(ctx, surveyID)
		if err != nil {
			return domain.Survey{}, err
		}

		data, err := json.Marshal(survey)
		if err != nil {
			return domain.Survey{}, err
		}
		if err := r.client.Set(ctx, key, data, r.ttlWithJitter()).Err(); err != nil {
			log.WithField("survey_id", surveyID).Warnf("cache survey snapshot: %v", err)
		}
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

// Invalidate deletes the cached snapshot.
func (r *SurveyRepository) Invalidate(ctx context.Context, surveyID int64) error {
	return r.client.Del(ctx, r.snapshotKey(surveyID)).Err()
}

func (r *SurveyRepository) cached(ctx context.Context, key string) (domain.Survey, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithField("key", key).Warnf("read survey snapshot: %v", err)
		}
		return domain.Survey{}, false
	}
	var survey domain.Survey
	if err := json.Unmarshal(data, &survey); err != nil {
		log.WithField("key", key).Warnf("corrupt survey snapshot: %v", err)
		return domain.Survey{}, false
	}
	return survey, true
}

func (r *SurveyRepository) snapshotKey(surveyID int64) string {
	return "survey:" + strconv.FormatInt(surveyID, 10) + ":snapshot"
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
