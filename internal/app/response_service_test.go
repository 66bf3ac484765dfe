package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
	"survey-flow-service/internal/infra/memory"
)

func TestRespondentWalksBranchingSurvey(t *testing.T) {
	ctx := context.Background()
	service, answers := newTestService(app.FlowConfig{})

	first, err := service.Start(ctx, 1, "r1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("expected first question 1, got %d", first.ID)
	}

	step, err := service.SubmitAnswer(ctx, 1, "r1", 1, answer.Input{Text: "  yes "})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if step.Completed || step.Next == nil || step.Next.ID != 2 {
		t.Fatalf("expected branch to question 2, got %+v", step)
	}
	if step.Answer.DisplayValue() != "Yes" {
		t.Fatalf("expected canonical option text, got %q", step.Answer.DisplayValue())
	}

	rating := 4
	step, err = service.SubmitAnswer(ctx, 1, "r1", 2, answer.Input{Rating: &rating})
	if err != nil {
		t.Fatalf("submit rating failed: %v", err)
	}
	if step.Next == nil || step.Next.ID != 3 {
		t.Fatalf("expected sequential step to question 3, got %+v", step)
	}

	step, err = service.SubmitAnswer(ctx, 1, "r1", 3, answer.Input{Text: "faster checkout"})
	if err != nil {
		t.Fatalf("submit text failed: %v", err)
	}
	if !step.Completed || step.Next != nil {
		t.Fatalf("expected completion after last question, got %+v", step)
	}
	if step.Progress.CompletedCount != 1 || step.Progress.AnswersRecorded != 3 {
		t.Fatalf("unexpected progress %+v", step.Progress)
	}

	records, err := answers.ListAnswers(ctx, 1, "r1")
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 stored answers, got %d", len(records))
	}
	wantTypes := []domain.QuestionType{domain.QuestionSingleChoice, domain.QuestionRating, domain.QuestionText}
	for i, rec := range records {
		if rec.Value.Type() != wantTypes[i] {
			t.Fatalf("answer %d: expected %s, got %s", i, wantTypes[i], rec.Value.Type())
		}
	}
}

func TestOptionEndsSurvey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.FlowConfig{})

	if _, err := service.Start(ctx, 1, "r1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	step, err := service.SubmitAnswer(ctx, 1, "r1", 1, answer.Input{SelectedOptions: []string{"NO"}})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !step.Completed {
		t.Fatalf("expected EndSurvey option to complete the survey")
	}

	if _, err := service.Start(ctx, 1, "r1"); !errors.Is(err, domain.ErrSurveyCompleted) {
		t.Fatalf("expected completed error on restart, got %v", err)
	}
}

func TestRatingOptionsRoute(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.FlowConfig{})

	if _, err := service.Start(ctx, 2, "r1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	low := 1
	step, err := service.SubmitAnswer(ctx, 2, "r1", 20, answer.Input{Rating: &low})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if step.Next == nil || step.Next.ID != 22 {
		t.Fatalf("expected low rating to route to 22, got %+v", step)
	}

	if _, err := service.Start(ctx, 2, "r2"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	step, err = service.SubmitAnswer(ctx, 2, "r2", 20, answer.Input{Text: "5"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !step.Completed {
		t.Fatalf("expected top rating to end the survey, got %+v", step)
	}
}

func TestLegacyAbsentNextEndsSurvey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.FlowConfig{AbsentNext: flow.AbsentEnd})

	if _, err := service.Start(ctx, 1, "r1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, 1, "r1", 1, answer.Input{Text: "Yes"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	rating := 3
	step, err := service.SubmitAnswer(ctx, 1, "r1", 2, answer.Input{Rating: &rating})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !step.Completed {
		t.Fatalf("expected a question without a next step to end the survey")
	}
}

func TestSubscribeReceivesProgress(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.FlowConfig{})

	if _, err := service.Start(ctx, 1, "r1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ch, cancel, err := service.Subscribe(ctx, 1)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.ActiveCount != 1 {
		t.Fatalf("expected one active respondent, got %+v", initial)
	}

	if _, err := service.SubmitAnswer(ctx, 1, "r1", 1, answer.Input{Text: "No"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	update := <-ch
	if update.ActiveCount != 0 || update.CompletedCount != 1 || update.AnswersRecorded != 1 {
		t.Fatalf("unexpected progress update %+v", update)
	}
}

func TestSubmitRequiresRespondent(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.FlowConfig{})

	_, err := service.SubmitAnswer(ctx, 99, "r1", 1, answer.Input{Text: "Yes"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}

	_, _ = service.Start(ctx, 1, "r1")
	_, err = service.SubmitAnswer(ctx, 1, "r2", 1, answer.Input{Text: "Yes"})
	if !errors.Is(err, domain.ErrRespondentNotFound) {
		t.Fatalf("expected respondent error, got %v", err)
	}
}

func TestSubmitOutOfOrderAndInvalid(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.FlowConfig{})

	if _, err := service.Start(ctx, 1, "r1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, 1, "r1", 3, answer.Input{Text: "skip ahead"}); !errors.Is(err, domain.ErrUnexpectedQuestion) {
		t.Fatalf("expected unexpected question, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, 1, "r1", 1, answer.Input{Text: "Maybe"}); !errors.Is(err, domain.ErrInvalidAnswerFormat) {
		t.Fatalf("expected invalid answer, got %v", err)
	}

	// Failed submissions leave the respondent where they were.
	resumed, err := service.Start(ctx, 1, "r1")
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.ID != 1 {
		t.Fatalf("expected to resume on question 1, got %d", resumed.ID)
	}
}

func TestStartChecksSurveyState(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(app.FlowConfig{})

	if _, err := service.Start(ctx, 3, "r1"); !errors.Is(err, domain.ErrSurveyInactive) {
		t.Fatalf("expected inactive error, got %v", err)
	}
	if _, err := service.Start(ctx, 4, "r1"); !errors.Is(err, domain.ErrSurveyEmpty) {
		t.Fatalf("expected empty error, got %v", err)
	}
	if _, err := service.Start(ctx, 404, "r1"); !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReconnectResumesAndCompletedRespondentCannotRetake(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	loader := memory.NewStaticSurveyLoader(testSurveys())
	answers := memory.NewAnswerStore()
	service := app.NewResponseService(sessions, memory.NewSurveyRepository(loader, time.Minute), answers, app.FlowConfig{})

	if _, err := service.Start(ctx, 1, "r1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, 1, "r1", 1, answer.Input{Text: "yes"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	service.Leave(ctx, 1, "r1")

	resumed, err := service.Start(ctx, 1, "r1")
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if resumed.ID != 2 {
		t.Fatalf("expected to resume on question 2, got %d", resumed.ID)
	}

	if _, err := service.Start(ctx, 1, "r2"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	step, err := service.SubmitAnswer(ctx, 1, "r2", 1, answer.Input{Text: "no"})
	if err != nil || !step.Completed {
		t.Fatalf("expected completion, got %+v err=%v", step, err)
	}
	service.Leave(ctx, 1, "r2")
	if _, err := service.Start(ctx, 1, "r2"); !errors.Is(err, domain.ErrSurveyCompleted) {
		t.Fatalf("expected completed respondent to be refused, got %v", err)
	}
	recorded, _ := answers.ListAnswers(ctx, 1, "r2")
	if len(recorded) != 1 {
		t.Fatalf("expected a single stored answer for r2, got %d", len(recorded))
	}
}

func TestEvictIdleSessions(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewSessionStore()
	loader := memory.NewStaticSurveyLoader(testSurveys())
	service := app.NewResponseService(sessions, memory.NewSurveyRepository(loader, time.Minute), memory.NewAnswerStore(), app.FlowConfig{})

	if _, err := service.Start(ctx, 1, "r1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if n := service.EvictIdleSessions(ctx, 0); n != 0 {
		t.Fatalf("connected respondent must keep the session, evicted %d", n)
	}
	service.Leave(ctx, 1, "r1")
	if n := service.EvictIdleSessions(ctx, time.Hour); n != 0 {
		t.Fatalf("recently used session must survive, evicted %d", n)
	}
	if n := service.EvictIdleSessions(ctx, 0); n != 1 {
		t.Fatalf("expected one idle session evicted, got %d", n)
	}
	if _, ok := sessions.Get(1); ok {
		t.Fatalf("expected session to be gone after eviction")
	}
}

func newTestService(cfg app.FlowConfig) (*app.ResponseService, *memory.AnswerStore) {
	loader := memory.NewStaticSurveyLoader(testSurveys())
	answers := memory.NewAnswerStore()
	service := app.NewResponseService(memory.NewSessionStore(), memory.NewSurveyRepository(loader, time.Minute), answers, cfg)
	return service, answers
}

func testSurveys() map[int64]domain.Survey {
	toTwo := goTo(2)
	toTwentyTwo := goTo(22)
	end := domain.EndSurvey()
	return map[int64]domain.Survey{
		1: {
			ID:     1,
			Title:  "Coffee",
			Active: true,
			Questions: []domain.Question{
				{
					ID:         1,
					Text:       "Do you drink coffee?",
					Type:       domain.QuestionSingleChoice,
					OrderIndex: 0,
					Options: []domain.QuestionOption{
						{ID: 1, Text: "Yes", OrderIndex: 0, Next: &toTwo},
						{ID: 2, Text: "No", OrderIndex: 1, Next: &end},
					},
				},
				{ID: 2, Text: "Rate our coffee", Type: domain.QuestionRating, OrderIndex: 1},
				{ID: 3, Text: "Anything else?", Type: domain.QuestionText, OrderIndex: 2},
			},
		},
		2: {
			ID:     2,
			Title:  "Support",
			Active: true,
			Questions: []domain.Question{
				{
					ID:         20,
					Text:       "How was support?",
					Type:       domain.QuestionRating,
					OrderIndex: 0,
					Options: []domain.QuestionOption{
						{ID: 201, Text: "1", OrderIndex: 0, Next: &toTwentyTwo},
						{ID: 205, Text: "5", OrderIndex: 4, Next: &end},
					},
				},
				{ID: 21, Text: "What went well?", Type: domain.QuestionText, OrderIndex: 1},
				{ID: 22, Text: "What went wrong?", Type: domain.QuestionText, OrderIndex: 2},
			},
		},
		3: {
			ID:        3,
			Title:     "Draft",
			Questions: []domain.Question{{ID: 30, Text: "Draft question", Type: domain.QuestionText}},
		},
		4: {ID: 4, Title: "Empty", Active: true},
	}
}

func goTo(id int64) domain.NextStep {
	step, err := domain.GoToQuestion(id)
	if err != nil {
		panic(err)
	}
	return step
}
