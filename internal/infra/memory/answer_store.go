package memory

import (
	"context"
	"sync"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/app"
)

// AnswerStore keeps answers in process, stored in canonical form like the durable stores.
type AnswerStore struct {
	mu      sync.RWMutex
	records []storedAnswer
}

type storedAnswer struct {
	record    app.AnswerRecord
	canonical []byte
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{}
}

func (s *AnswerStore) SaveAnswer(_ context.Context, record app.AnswerRecord) error {
	canonical, err := answer.CanonicalForm(record.Value)
	if err != nil {
		return err
	}
	record.Value = nil
	s.mu.Lock()
	s.records = append(s.records, storedAnswer{record: record, canonical: canonical})
	s.mu.Unlock()
	return nil
}

func (s *AnswerStore) ListAnswers(_ context.Context, surveyID int64, respondentID string) ([]app.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]app.AnswerRecord, 0)
	for _, stored := range s.records {
		if stored.record.SurveyID != surveyID || stored.record.RespondentID != respondentID {
			continue
		}
		value, err := answer.Parse(stored.canonical)
		if err != nil {
			return nil, err
		}
		rec := stored.record
		rec.Value = value
		out = append(out, rec)
	}
	return out, nil
}
