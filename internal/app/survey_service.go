package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

// DefaultMaxQuestions caps the size of a survey the validator will look at.
const DefaultMaxQuestions = 500

// FlowConfig tunes how survey graphs are built.
type FlowConfig struct {
	AbsentNext   flow.AbsentNextPolicy
	MaxQuestions int
}

func (c FlowConfig) withDefaults() FlowConfig {
	if c.AbsentNext == "" {
		c.AbsentNext = flow.AbsentSequential
	}
	if c.MaxQuestions <= 0 {
		c.MaxQuestions = DefaultMaxQuestions
	}
	return c
}

// SurveyService runs structural validation and activation of surveys.
type SurveyService struct {
	surveys   SurveyRepository
	activator SurveyActivator
	cfg       FlowConfig
}

func NewSurveyService(surveys SurveyRepository, activator SurveyActivator, cfg FlowConfig) *SurveyService {
	return &SurveyService{surveys: surveys, activator: activator, cfg: cfg.withDefaults()}
}

// DetectCycle reports the first navigation cycle found in the survey, if any.
func (s *SurveyService) DetectCycle(ctx context.Context, surveyID int64) (flow.CycleDetectionResult, error) {
	graph, err := s.graph(ctx, surveyID)
	if err != nil {
		return flow.CycleDetectionResult{}, err
	}
	result := graph.DetectCycle()
	if result.HasCycle {
		log.WithFields(log.Fields{"survey_id": surveyID, "cycle": result.CyclePath}).Warn(result.Message)
	}
	return result, nil
}

// ValidateSurveyStructure is true when the survey has no cycle and at least one endpoint.
func (s *SurveyService) ValidateSurveyStructure(ctx context.Context, surveyID int64) (bool, error) {
	report, err := s.Report(ctx, surveyID)
	if err != nil {
		return false, err
	}
	return report.Valid, nil
}

// FindSurveyEndpoints lists the questions that can end the survey.
func (s *SurveyService) FindSurveyEndpoints(ctx context.Context, surveyID int64) ([]int64, error) {
	graph, err := s.graph(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return graph.Endpoints(), nil
}

// Report runs the full structural validation.
func (s *SurveyService) Report(ctx context.Context, surveyID int64) (flow.Report, error) {
	graph, err := s.graph(ctx, surveyID)
	if err != nil {
		return flow.Report{}, err
	}
	report := graph.Validate()
	for _, ref := range report.Dangling {
		log.WithFields(log.Fields{
			"survey_id":   surveyID,
			"question_id": ref.QuestionID,
			"option_id":   ref.OptionID,
			"target_id":   ref.TargetID,
		}).Warn("next step points to a question outside the survey")
	}
	return report, nil
}

// Activate marks the survey active after it passes structural validation. Surveys
// that route to questions outside the survey are refused as well.
func (s *SurveyService) Activate(ctx context.Context, surveyID int64) (flow.Report, error) {
	report, err := s.Report(ctx, surveyID)
	if err != nil {
		return flow.Report{}, err
	}
	if !report.Valid {
		log.WithField("survey_id", surveyID).Infof("activation refused: %s", report.Message)
		return report, fmt.Errorf("%w: %s", domain.ErrInvalidStructure, report.Message)
	}
	if len(report.Dangling) > 0 {
		ref := report.Dangling[0]
		return report, fmt.Errorf("%w: question %d routes to missing question %d",
			domain.ErrInvalidStructure, ref.QuestionID, ref.TargetID)
	}
	if err := s.activator.SetActive(ctx, surveyID, true); err != nil {
		return report, err
	}
	if err := s.surveys.Invalidate(ctx, surveyID); err != nil {
		log.WithField("survey_id", surveyID).Warnf("survey cache invalidation failed: %v", err)
	}
	log.WithField("survey_id", surveyID).Info("survey activated")
	return report, nil
}

// Deactivate stops new respondents from starting the survey.
func (s *SurveyService) Deactivate(ctx context.Context, surveyID int64) error {
	if err := s.activator.SetActive(ctx, surveyID, false); err != nil {
		return err
	}
	return s.surveys.Invalidate(ctx, surveyID)
}

func (s *SurveyService) graph(ctx context.Context, surveyID int64) (*flow.Graph, error) {
	survey, err := s.surveys.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return buildGraph(survey, s.cfg)
}

func buildGraph(survey domain.Survey, cfg FlowConfig) (*flow.Graph, error) {
	if len(survey.Questions) > cfg.MaxQuestions {
		return nil, fmt.Errorf("%w: %d questions, limit is %d", domain.ErrSurveyTooLarge, len(survey.Questions), cfg.MaxQuestions)
	}
	return flow.Build(survey.Questions, cfg.AbsentNext), nil
}
