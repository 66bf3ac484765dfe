package answer

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"survey-flow-service/internal/domain"
)

// MaxTextLength caps free-text answers, counted in characters after trimming.
const MaxTextLength = 5000

// Text is a free-form answer.
type Text struct {
	value string
}

// NewText trims raw and requires 1..MaxTextLength characters.
func NewText(raw string) (Text, error) {
	if !utf8.ValidString(raw) {
		return Text{}, invalidf("text answer is not valid UTF-8")
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return Text{}, invalidf("text answer cannot be empty")
	}
	if n := utf8.RuneCountInString(value); n > MaxTextLength {
		return Text{}, invalidf("text answer is %d characters, maximum is %d", n, MaxTextLength)
	}
	return Text{value: value}, nil
}

func (t Text) Value() string { return t.value }

func (Text) Type() domain.QuestionType { return domain.QuestionText }

func (t Text) DisplayValue() string { return t.value }

func (t Text) IsValidFor(q domain.Question) bool {
	return q.Type == domain.QuestionText
}

func (t Text) Equal(other Value) bool {
	o, ok := other.(Text)
	return ok && o.value == t.value
}

func (Text) sealed() {}

type textJSON struct {
	Type domain.QuestionType `json:"$type"`
	Text string              `json:"text"`
}

func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(textJSON{Type: domain.QuestionText, Text: t.value})
}

func decodeText(data []byte) (Value, error) {
	var in textJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, invalidf("text answer: %v", err)
	}
	return NewText(in.Text)
}
