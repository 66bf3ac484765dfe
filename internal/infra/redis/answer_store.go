package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/app"
)

// AnswerStore appends answers to a Redis list per respondent:
// RPUSH survey:{surveyID}:respondent:{respondentID}:answers {entry JSON}
type AnswerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerStore(client *redis.Client, ttl time.Duration) *AnswerStore {
	return &AnswerStore{client: client, ttl: ttl}
}

type answerEntry struct {
	QuestionID int64           `json:"questionId"`
	AnsweredAt time.Time       `json:"answeredAt"`
	Value      json.RawMessage `json:"value"`
}

func (s *AnswerStore) SaveAnswer(ctx context.Context, record app.AnswerRecord) error {
	canonical, err := answer.CanonicalForm(record.Value)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(answerEntry{
		QuestionID: record.QuestionID,
		AnsweredAt: record.AnsweredAt,
		Value:      canonical,
	})
	if err != nil {
		return err
	}
	key := s.key(record.SurveyID, record.RespondentID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, entry)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *AnswerStore) ListAnswers(ctx context.Context, surveyID int64, respondentID string) ([]app.AnswerRecord, error) {
	raw, err := s.client.LRange(ctx, s.key(surveyID, respondentID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]app.AnswerRecord, 0, len(raw))
	for _, item := range raw {
		var entry answerEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode answer entry: %w", err)
		}
		value, err := answer.Parse(entry.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, app.AnswerRecord{
			SurveyID:     surveyID,
			QuestionID:   entry.QuestionID,
			RespondentID: respondentID,
			Value:        value,
			AnsweredAt:   entry.AnsweredAt,
		})
	}
	return out, nil
}

func (s *AnswerStore) key(surveyID int64, respondentID string) string {
	return "survey:" + strconv.FormatInt(surveyID, 10) + ":respondent:" + respondentID + ":answers"
}
