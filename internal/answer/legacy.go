package answer

import (
	"bytes"
	"strings"

	"survey-flow-service/internal/domain"
)

// LegacyAnswer is the pre-unification storage shape: a freeform text column and a
// structured JSON column, either of which may be empty.
type LegacyAnswer struct {
	AnswerText *string
	AnswerJSON []byte
}

// ConvertLegacy maps a legacy record onto a Value. Text questions read the freeform
// field, every other type reads the structured field. Missing or unreadable data
// yields false; historical rows are not expected to meet current invariants.
func ConvertLegacy(q domain.Question, legacy LegacyAnswer) (Value, bool) {
	if q.Type == domain.QuestionText {
		if legacy.AnswerText == nil || strings.TrimSpace(*legacy.AnswerText) == "" {
			return nil, false
		}
		v, err := NewText(*legacy.AnswerText)
		if err != nil {
			return nil, false
		}
		return v, true
	}

	data := bytes.TrimSpace(legacy.AnswerJSON)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("{}")) {
		return nil, false
	}
	if v, ok := TryParse(data); ok && v.Type() == q.Type {
		return v, true
	}
	v, err := ParseAs(data, q.Type)
	if err != nil {
		return nil, false
	}
	return v, true
}
