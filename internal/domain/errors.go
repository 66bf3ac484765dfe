package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSurveyNotFound indicates the survey content could not be loaded.
	ErrSurveyNotFound = errors.New("survey not found")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the survey.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is returned when no respondent has started the survey yet.
	ErrSessionNotFound = errors.New("survey session not found")
	// ErrRespondentNotFound is returned when a respondent answers before starting.
	ErrRespondentNotFound = errors.New("respondent not found in survey")
	// ErrSurveyCompleted is returned when a respondent answers after reaching the end.
	ErrSurveyCompleted = errors.New("survey already completed")
	// ErrSurveyInactive is returned when respondents try to start a survey that was never activated.
	ErrSurveyInactive = errors.New("survey is not active")
	// ErrSurveyEmpty is returned when a survey has no questions to ask.
	ErrSurveyEmpty = errors.New("survey has no questions")
	// ErrSurveyTooLarge is returned when a survey exceeds the configured question cap.
	ErrSurveyTooLarge = errors.New("survey exceeds question limit")
	// ErrUnexpectedQuestion is returned when the answered question is not the one the respondent is on.
	ErrUnexpectedQuestion = errors.New("answer does not match the current question")

	// ErrInvalidStructure is returned when activation is refused by the flow validator.
	ErrInvalidStructure = errors.New("invalid survey structure")

	// ErrValidation is returned by value-object factories when the input combination is illegal.
	ErrValidation = errors.New("validation error")
	// ErrInvalidAnswerFormat covers malformed or out-of-range answers and corrupt stored answers.
	ErrInvalidAnswerFormat = errors.New("invalid answer format")
	// ErrInvalidLocation is the coordinate/accuracy flavour of ErrInvalidAnswerFormat.
	ErrInvalidLocation = fmt.Errorf("%w: invalid location", ErrInvalidAnswerFormat)
	// ErrInvalidQuestionType indicates a question type the answer factory does not know.
	ErrInvalidQuestionType = errors.New("invalid question type")
)
