package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/app"
)

func TestAnswerStoreAppendsCanonicalForms(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewAnswerStore(newClient(mr), time.Hour)
	ctx := context.Background()

	choice, err := answer.NewMultipleChoice([]string{"Option A", "Option C"}, nil)
	if err != nil {
		t.Fatalf("multiple choice: %v", err)
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SaveAnswer(ctx, app.AnswerRecord{
		SurveyID: 3, QuestionID: 9, RespondentID: "r1", Value: choice, AnsweredAt: at,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if !mr.Exists("survey:3:respondent:r1:answers") {
		t.Fatalf("expected answer list key")
	}

	got, err := store.ListAnswers(ctx, 3, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one answer, got %d", len(got))
	}
	if got[0].QuestionID != 9 || !got[0].AnsweredAt.Equal(at) {
		t.Fatalf("unexpected record %+v", got[0])
	}
	if got[0].Value.DisplayValue() != "Option A; Option C" {
		t.Fatalf("unexpected display value %q", got[0].Value.DisplayValue())
	}
}
