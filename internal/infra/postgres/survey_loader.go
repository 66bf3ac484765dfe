package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"survey-flow-service/internal/domain"
)

// SurveyLoader loads survey JSONB from Postgres. The is_active column is authoritative
// over whatever the document says.
type SurveyLoader struct {
	pool *pgxpool.Pool
}

func NewSurveyLoader(pool *pgxpool.Pool) *SurveyLoader {
	return &SurveyLoader{pool: pool}
}

func (l *SurveyLoader) LoadSurvey(ctx context.Context, surveyID int64) (domain.Survey, error) {
	var (
		raw    []byte
		active bool
	)
	err := l.pool.QueryRow(ctx, `SELECT data, is_active FROM surveys WHERE id=$1`, surveyID).Scan(&raw, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Survey{}, fmt.Errorf("%w: %d", domain.ErrSurveyNotFound, surveyID)
		}
		return domain.Survey{}, fmt.Errorf("load survey: %w", err)
	}
	var survey domain.Survey
	if err := json.Unmarshal(raw, &survey); err != nil {
		return domain.Survey{}, fmt.Errorf("unmarshal survey: %w", err)
	}
	survey.ID = surveyID
	survey.Active = active
	return survey, nil
}

// SetActive flips surveys.is_active.
func (l *SurveyLoader) SetActive(ctx context.Context, surveyID int64, active bool) error {
	tag, err := l.pool.Exec(ctx, `UPDATE surveys SET is_active=$2, updated_at=now() WHERE id=$1`, surveyID, active)
	if err != nil {
		return fmt.Errorf("set survey active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrSurveyNotFound, surveyID)
	}
	return nil
}

// SaveSurvey upserts a survey document; used by seeding and tests.
func (l *SurveyLoader) SaveSurvey(ctx context.Context, survey domain.Survey) error {
	data, err := json.Marshal(survey)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO surveys (id, title, is_active, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, data=EXCLUDED.data, updated_at=now()`,
		survey.ID, survey.Title, survey.Active, string(data))
	if err != nil {
		return fmt.Errorf("save survey: %w", err)
	}
	return nil
}
