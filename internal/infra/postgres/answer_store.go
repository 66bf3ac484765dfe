package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
)

// surveyLoader is what the answer store needs to interpret legacy rows.
type surveyLoader interface {
	LoadSurvey(ctx context.Context, surveyID int64) (domain.Survey, error)
}

// AnswerStore writes canonical answers to answers.answer_value. Rows written before
// the unified format only carry answer_text/answer_json and are converted on read.
type AnswerStore struct {
	pool    *pgxpool.Pool
	surveys surveyLoader
}

func NewAnswerStore(pool *pgxpool.Pool, surveys surveyLoader) *AnswerStore {
	return &AnswerStore{pool: pool, surveys: surveys}
}

func (s *AnswerStore) SaveAnswer(ctx context.Context, record app.AnswerRecord) error {
	canonical, err := answer.CanonicalForm(record.Value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO answers (survey_id, question_id, respondent_id, answer_value, answered_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)`,
		record.SurveyID, record.QuestionID, record.RespondentID, string(canonical), record.AnsweredAt)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

type answerRow struct {
	id         int64
	questionID int64
	answeredAt time.Time
	value      []byte
	legacy     answer.LegacyAnswer
}

func (s *AnswerStore) ListAnswers(ctx context.Context, surveyID int64, respondentID string) ([]app.AnswerRecord, error) {
	rows, err := s.rows(ctx, `
		SELECT id, question_id, answered_at, answer_value, answer_text, answer_json
		FROM answers WHERE survey_id=$1 AND respondent_id=$2 ORDER BY id`, surveyID, respondentID)
	if err != nil {
		return nil, err
	}

	var questions map[int64]domain.Question
	out := make([]app.AnswerRecord, 0, len(rows))
	for _, row := range rows {
		rec := app.AnswerRecord{
			SurveyID:     surveyID,
			QuestionID:   row.questionID,
			RespondentID: respondentID,
			AnsweredAt:   row.answeredAt,
		}
		if len(row.value) > 0 {
			value, err := answer.Parse(row.value)
			if err != nil {
				return nil, fmt.Errorf("answer %d: %w", row.id, err)
			}
			rec.Value = value
			out = append(out, rec)
			continue
		}

		if questions == nil {
			if questions, err = s.questions(ctx, surveyID); err != nil {
				return nil, err
			}
		}
		q, ok := questions[row.questionID]
		if !ok {
			continue
		}
		value, ok := answer.ConvertLegacy(q, row.legacy)
		if !ok {
			continue
		}
		rec.Value = value
		out = append(out, rec)
	}
	return out, nil
}

// ConvertLegacyAnswers rewrites legacy rows of a survey into answer_value. Rows that
// hold no usable answer are left alone and counted as skipped.
func (s *AnswerStore) ConvertLegacyAnswers(ctx context.Context, surveyID int64) (converted, skipped int, err error) {
	rows, err := s.rows(ctx, `
		SELECT id, question_id, answered_at, answer_value, answer_text, answer_json
		FROM answers WHERE survey_id=$1 AND answer_value IS NULL ORDER BY id`, surveyID)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	questions, err := s.questions(ctx, surveyID)
	if err != nil {
		return 0, 0, err
	}

	for _, row := range rows {
		q, ok := questions[row.questionID]
		if !ok {
			skipped++
			continue
		}
		value, ok := answer.ConvertLegacy(q, row.legacy)
		if !ok {
			skipped++
			continue
		}
		canonical, err := answer.CanonicalForm(value)
		if err != nil {
			return converted, skipped, err
		}
		if _, err := s.pool.Exec(ctx, `UPDATE answers SET answer_value=$2::jsonb WHERE id=$1`, row.id, string(canonical)); err != nil {
			return converted, skipped, fmt.Errorf("update answer %d: %w", row.id, err)
		}
		converted++
	}
	log.WithFields(log.Fields{"survey_id": surveyID, "converted": converted, "skipped": skipped}).Info("legacy answers converted")
	return converted, skipped, nil
}

func (s *AnswerStore) rows(ctx context.Context, query string, args ...any) ([]answerRow, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []answerRow
	for rows.Next() {
		var (
			row        answerRow
			answerJSON []byte
		)
		if err := rows.Scan(&row.id, &row.questionID, &row.answeredAt, &row.value, &row.legacy.AnswerText, &answerJSON); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		row.legacy.AnswerJSON = answerJSON
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *AnswerStore) questions(ctx context.Context, surveyID int64) (map[int64]domain.Question, error) {
	if s.surveys == nil {
		return nil, fmt.Errorf("legacy answers need a survey loader")
	}
	survey, err := s.surveys.LoadSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]domain.Question, len(survey.Questions))
	for _, q := range survey.Questions {
		out[q.ID] = q
	}
	return out, nil
}
