package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"survey-flow-service/internal/domain"
)

func TestSurveyRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		SurveyLoader: NewStaticSurveyLoader(map[int64]domain.Survey{
			1: sampleSurvey(),
		}),
	}
	repo := NewSurveyRepository(loader, time.Minute)

	if _, err := repo.GetSurvey(context.Background(), 1); err != nil {
		t.Fatalf("get survey: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetSurvey(context.Background(), 1); err != nil {
		t.Fatalf("get survey 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestSurveyRepositoryInvalidate(t *testing.T) {
	static := NewStaticSurveyLoader(map[int64]domain.Survey{1: sampleSurvey()})
	loader := &countingLoader{SurveyLoader: static}
	repo := NewSurveyRepository(loader, time.Minute)
	ctx := context.Background()

	survey, err := repo.GetSurvey(ctx, 1)
	if err != nil {
		t.Fatalf("get survey: %v", err)
	}
	if survey.Active {
		t.Fatalf("expected inactive survey")
	}

	if err := static.SetActive(ctx, 1, true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := repo.Invalidate(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	survey, err = repo.GetSurvey(ctx, 1)
	if err != nil {
		t.Fatalf("get survey after invalidate: %v", err)
	}
	if !survey.Active || loader.calls != 2 {
		t.Fatalf("expected reload with active survey, active=%v calls=%d", survey.Active, loader.calls)
	}
}

func TestStaticSurveyLoaderUnknownSurvey(t *testing.T) {
	loader := NewStaticSurveyLoader(nil)
	if _, err := loader.LoadSurvey(context.Background(), 42); !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := loader.SetActive(context.Background(), 42, true); !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected not found on activation, got %v", err)
	}
}

type countingLoader struct {
	SurveyLoader
	calls int
}

func (l *countingLoader) LoadSurvey(ctx context.Context, surveyID int64) (domain.Survey, error) {
	l.calls++
	return l.SurveyLoader.LoadSurvey(ctx, surveyID)
}

func sampleSurvey() domain.Survey {
	end := domain.EndSurvey()
	return domain.Survey{
		ID:    1,
		Title: "Feedback",
		Questions: []domain.Question{
			{ID: 1, Text: "How was it?", Type: domain.QuestionText, OrderIndex: 0, DefaultNext: &end},
		},
	}
}
