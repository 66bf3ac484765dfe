package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuestionType enumerates the closed set of question kinds. The names double as the
// `$type` tag of stored answers.
type QuestionType string

const (
	QuestionText           QuestionType = "Text"
	QuestionSingleChoice   QuestionType = "SingleChoice"
	QuestionMultipleChoice QuestionType = "MultipleChoice"
	QuestionRating         QuestionType = "Rating"
	QuestionLocation       QuestionType = "Location"
	QuestionNumber         QuestionType = "Number"
	QuestionDate           QuestionType = "Date"
)

// Default rating scale used when a Rating question has no explicit bounds.
const (
	DefaultMinRating = 1
	DefaultMaxRating = 5
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionSingleChoice, QuestionMultipleChoice, QuestionRating,
		QuestionLocation, QuestionNumber, QuestionDate:
		return true
	}
	return false
}

// SupportsBranching is true for the types that route per option.
func (t QuestionType) SupportsBranching() bool {
	return t == QuestionSingleChoice || t == QuestionRating
}

// QuestionOption is one selectable option; Next routes respondents who pick it.
type QuestionOption struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	OrderIndex int       `json:"orderIndex"`
	Next       *NextStep `json:"next,omitempty"`
}

// QuestionConfig holds the type-specific bounds answers are checked against.
type QuestionConfig struct {
	MinRating     *int             `json:"minRating,omitempty"`
	MaxRating     *int             `json:"maxRating,omitempty"`
	MinValue      *decimal.Decimal `json:"minValue,omitempty"`
	MaxValue      *decimal.Decimal `json:"maxValue,omitempty"`
	DecimalPlaces *int             `json:"decimalPlaces,omitempty"`
	MinDate       *CalendarDate    `json:"minDate,omitempty"`
	MaxDate       *CalendarDate    `json:"maxDate,omitempty"`
}

// RatingBounds returns the configured rating scale, defaulting to 1..5.
func (c QuestionConfig) RatingBounds() (int, int) {
	lo, hi := DefaultMinRating, DefaultMaxRating
	if c.MinRating != nil {
		lo = *c.MinRating
	}
	if c.MaxRating != nil {
		hi = *c.MaxRating
	}
	return lo, hi
}

// Question is the read view of a survey question used by the flow and answer layers.
type Question struct {
	ID          int64            `json:"id"`
	SurveyID    int64            `json:"surveyId,omitempty"`
	Text        string           `json:"text"`
	Type        QuestionType     `json:"type"`
	OrderIndex  int              `json:"orderIndex"`
	Required    bool             `json:"required,omitempty"`
	Options     []QuestionOption `json:"options,omitempty"`
	DefaultNext *NextStep        `json:"defaultNext,omitempty"`
	Config      QuestionConfig   `json:"config"`
}

// SupportsBranching is true exactly for SingleChoice and Rating questions.
func (q Question) SupportsBranching() bool {
	return q.Type.SupportsBranching()
}

// OptionTexts lists option texts in stored order.
func (q Question) OptionTexts() []string {
	out := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		out = append(out, opt.Text)
	}
	return out
}

// Survey is an ordered collection of questions.
type Survey struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Active    bool       `json:"active"`
	Questions []Question `json:"questions"`
}

// Question looks up a question by id.
func (s Survey) Question(id int64) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Progress is a snapshot-friendly view of how respondents are moving through a survey.
type Progress struct {
	SurveyID        int64     `json:"surveyId"`
	ActiveCount     int       `json:"active"`
	CompletedCount  int       `json:"completed"`
	AnswersRecorded int       `json:"answersRecorded"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
