package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

// ResponseService walks respondents through a survey and records their answers.
type ResponseService struct {
	sessions SessionRepository
	surveys  SurveyRepository
	answers  AnswerStore
	cfg      FlowConfig
	now      func() time.Time
}

func NewResponseService(sessions SessionRepository, surveys SurveyRepository, answers AnswerStore, cfg FlowConfig) *ResponseService {
	return &ResponseService{
		sessions: sessions,
		surveys:  surveys,
		answers:  answers,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Step is the outcome of one submitted answer.
type Step struct {
	Answer    answer.Value
	Next      *domain.Question
	Completed bool
	Progress  domain.Progress
}

// Start registers the respondent and returns the question they should answer. A
// returning respondent resumes where they left off while the session is held;
// one who already completed the survey gets ErrSurveyCompleted.
func (s *ResponseService) Start(ctx context.Context, surveyID int64, respondentID string) (domain.Question, error) {
	survey, graph, err := s.load(ctx, surveyID)
	if err != nil {
		return domain.Question{}, err
	}
	if !survey.Active {
		return domain.Question{}, domain.ErrSurveyInactive
	}
	first, ok := graph.First()
	if !ok {
		return domain.Question{}, domain.ErrSurveyEmpty
	}

	session := s.sessions.GetOrCreate(surveyID)
	current, completed := session.start(respondentID, first.ID)
	if completed {
		return domain.Question{}, domain.ErrSurveyCompleted
	}
	q, ok := graph.Question(current)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, current)
	}
	return q, nil
}

// SubmitAnswer validates raw input against the respondent's current question,
// persists it and moves the respondent along the flow graph.
func (s *ResponseService) SubmitAnswer(ctx context.Context, surveyID int64, respondentID string, questionID int64, in answer.Input) (Step, error) {
	session, ok := s.sessions.Get(surveyID)
	if !ok {
		return Step{}, domain.ErrSessionNotFound
	}
	_, graph, err := s.load(ctx, surveyID)
	if err != nil {
		return Step{}, err
	}
	q, ok := graph.Question(questionID)
	if !ok {
		return Step{}, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, questionID)
	}
	current, err := session.position(respondentID)
	if err != nil {
		return Step{}, err
	}
	if current != questionID {
		return Step{}, domain.ErrUnexpectedQuestion
	}

	value, err := answer.CreateFromInput(q, in)
	if err != nil {
		return Step{}, err
	}
	target, err := graph.Next(q.ID, chosenOption(q, value))
	if err != nil {
		return Step{}, err
	}

	record := AnswerRecord{
		SurveyID:     surveyID,
		QuestionID:   questionID,
		RespondentID: respondentID,
		Value:        value,
		AnsweredAt:   s.now(),
	}
	if err := s.answers.SaveAnswer(ctx, record); err != nil {
		log.WithFields(log.Fields{
			"survey_id":     surveyID,
			"question_id":   questionID,
			"respondent_id": respondentID,
		}).Errorf("save answer: %v", err)
		return Step{}, err
	}

	progress, err := session.advance(respondentID, questionID, target)
	if err != nil {
		return Step{}, err
	}

	step := Step{Answer: value, Completed: target.End, Progress: progress}
	if !target.End {
		next, _ := graph.Question(target.QuestionID)
		step.Next = &next
	}
	return step, nil
}

// Subscribe returns a channel that receives progress updates for a survey.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ResponseService) Subscribe(_ context.Context, surveyID int64) (<-chan domain.Progress, func(), error) {
	session, ok := s.sessions.Get(surveyID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leave disconnects a respondent. A reconnect through Start resumes their position;
// a respondent who completed the survey stays completed.
func (s *ResponseService) Leave(_ context.Context, surveyID int64, respondentID string) {
	session, ok := s.sessions.Get(surveyID)
	if !ok {
		return
	}
	session.leave(respondentID)
}

// EvictIdleSessions forgets surveys nobody has touched for idle. Respondents of an
// evicted session start over.
func (s *ResponseService) EvictIdleSessions(ctx context.Context, idle time.Duration) int {
	n := s.sessions.EvictIdle(ctx, idle)
	if n > 0 {
		log.WithField("evicted", n).Info("idle survey sessions evicted")
	}
	return n
}

// ActiveSurveys lists surveys with respondents in flight.
func (s *ResponseService) ActiveSurveys(ctx context.Context) ([]int64, error) {
	return s.sessions.ActiveSurveys(ctx)
}

// Answers lists what a respondent has recorded so far.
func (s *ResponseService) Answers(ctx context.Context, surveyID int64, respondentID string) ([]AnswerRecord, error) {
	return s.answers.ListAnswers(ctx, surveyID, respondentID)
}

func (s *ResponseService) load(ctx context.Context, surveyID int64) (domain.Survey, *flow.Graph, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return domain.Survey{}, nil, err
	}
	graph, err := buildGraph(survey, s.cfg)
	if err != nil {
		return domain.Survey{}, nil, err
	}
	return survey, graph, nil
}

// chosenOption maps a branching answer onto the option that routes it: the selected
// option for single choice, the option labelled with the value for ratings.
func chosenOption(q domain.Question, v answer.Value) int {
	switch a := v.(type) {
	case answer.SingleChoice:
		return a.SelectedOptionIndex()
	case answer.Rating:
		label := a.DisplayValue()
		for i, opt := range q.Options {
			if strings.TrimSpace(opt.Text) == label {
				return i
			}
		}
	}
	return -1
}
