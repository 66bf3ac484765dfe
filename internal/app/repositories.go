package app

import (
	"context"
	"time"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/domain"
)

// SurveyRepository loads survey snapshots (from cache/backing store).
type SurveyRepository interface {
	GetSurvey(ctx context.Context, surveyID int64) (domain.Survey, error)
	// Invalidate drops any cached snapshot so the next read sees fresh data.
	Invalidate(ctx context.Context, surveyID int64) error
}

// SurveyActivator records the activation state of a survey.
type SurveyActivator interface {
	SetActive(ctx context.Context, surveyID int64, active bool) error
}

// SessionRepository abstracts how survey sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(surveyID int64) *Session
	Get(surveyID int64) (*Session, bool)
	// EvictIdle drops sessions that have been idle for at least idle and reports
	// how many were dropped.
	EvictIdle(ctx context.Context, idle time.Duration) int
	// ActiveSurveys lists surveys that currently hold a session.
	ActiveSurveys(ctx context.Context) ([]int64, error)
}

// AnswerRecord is one persisted answer.
type AnswerRecord struct {
	SurveyID     int64
	QuestionID   int64
	RespondentID string
	Value        answer.Value
	AnsweredAt   time.Time
}

// AnswerStore persists answers in canonical form.
type AnswerStore interface {
	SaveAnswer(ctx context.Context, record AnswerRecord) error
	ListAnswers(ctx context.Context, surveyID int64, respondentID string) ([]AnswerRecord, error)
}
