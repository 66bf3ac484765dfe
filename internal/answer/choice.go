package answer

import (
	"encoding/json"
	"strings"

	"survey-flow-service/internal/domain"
)

// UnknownOptionIndex marks a single-choice value rebuilt without option context.
const UnknownOptionIndex = -1

// SingleChoice holds the canonical text of the one selected option.
type SingleChoice struct {
	option string
	index  int
}

// NewSingleChoice matches raw case-insensitively against q's options and keeps the
// stored option text. With a nil question the value is trusted and the index unknown.
func NewSingleChoice(raw string, q *domain.Question) (SingleChoice, error) {
	selected := strings.TrimSpace(raw)
	if selected == "" {
		return SingleChoice{}, invalidf("a selected option is required")
	}
	if q == nil {
		return SingleChoice{option: selected, index: UnknownOptionIndex}, nil
	}
	if q.Type != domain.QuestionSingleChoice {
		return SingleChoice{}, wrongType(domain.QuestionSingleChoice, *q)
	}
	idx, err := matchOption(q.Options, selected)
	if err != nil {
		return SingleChoice{}, err
	}
	return SingleChoice{option: q.Options[idx].Text, index: idx}, nil
}

func newStoredSingleChoice(option string, index *int) (SingleChoice, error) {
	sc, err := NewSingleChoice(option, nil)
	if err != nil {
		return SingleChoice{}, err
	}
	if index != nil {
		if *index < 0 {
			return SingleChoice{}, invalidf("selected option index %d is negative", *index)
		}
		sc.index = *index
	}
	return sc, nil
}

func (s SingleChoice) SelectedOption() string { return s.option }

// SelectedOptionIndex is the option position, or UnknownOptionIndex.
func (s SingleChoice) SelectedOptionIndex() int { return s.index }

func (SingleChoice) Type() domain.QuestionType { return domain.QuestionSingleChoice }

func (s SingleChoice) DisplayValue() string { return s.option }

func (s SingleChoice) IsValidFor(q domain.Question) bool {
	if q.Type != domain.QuestionSingleChoice {
		return false
	}
	_, err := matchOption(q.Options, s.option)
	return err == nil
}

func (s SingleChoice) Equal(other Value) bool {
	o, ok := other.(SingleChoice)
	return ok && o.option == s.option && o.index == s.index
}

func (SingleChoice) sealed() {}

type singleChoiceJSON struct {
	Type                domain.QuestionType `json:"$type"`
	SelectedOption      string              `json:"selectedOption"`
	SelectedOptionIndex *int                `json:"selectedOptionIndex,omitempty"`
}

func (s SingleChoice) MarshalJSON() ([]byte, error) {
	out := singleChoiceJSON{Type: domain.QuestionSingleChoice, SelectedOption: s.option}
	if s.index != UnknownOptionIndex {
		idx := s.index
		out.SelectedOptionIndex = &idx
	}
	return json.Marshal(out)
}

func decodeSingleChoice(data []byte) (Value, error) {
	var in singleChoiceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, invalidf("single choice answer: %v", err)
	}
	return newStoredSingleChoice(in.SelectedOption, in.SelectedOptionIndex)
}

// MultipleChoice keeps selections in the order the respondent gave them.
type MultipleChoice struct {
	options []string
}

// NewMultipleChoice requires at least one non-blank selection. With a question, each
// selection must match one option case-insensitively and is stored as the option text.
func NewMultipleChoice(selected []string, q *domain.Question) (MultipleChoice, error) {
	if q != nil && q.Type != domain.QuestionMultipleChoice {
		return MultipleChoice{}, wrongType(domain.QuestionMultipleChoice, *q)
	}
	out := make([]string, 0, len(selected))
	seen := make(map[string]struct{}, len(selected))
	for _, raw := range selected {
		option := strings.TrimSpace(raw)
		if option == "" {
			continue
		}
		if q != nil {
			idx, err := matchOption(q.Options, option)
			if err != nil {
				return MultipleChoice{}, err
			}
			option = q.Options[idx].Text
		}
		key := strings.ToLower(option)
		if _, dup := seen[key]; dup {
			return MultipleChoice{}, invalidf("option %q selected more than once", option)
		}
		seen[key] = struct{}{}
		out = append(out, option)
	}
	if len(out) == 0 {
		return MultipleChoice{}, invalidf("at least one option must be selected")
	}
	return MultipleChoice{options: out}, nil
}

// SelectedOptions returns a copy of the selections.
func (m MultipleChoice) SelectedOptions() []string {
	return append([]string(nil), m.options...)
}

func (MultipleChoice) Type() domain.QuestionType { return domain.QuestionMultipleChoice }

func (m MultipleChoice) DisplayValue() string { return strings.Join(m.options, "; ") }

func (m MultipleChoice) IsValidFor(q domain.Question) bool {
	if q.Type != domain.QuestionMultipleChoice {
		return false
	}
	for _, option := range m.options {
		if _, err := matchOption(q.Options, option); err != nil {
			return false
		}
	}
	return true
}

func (m MultipleChoice) Equal(other Value) bool {
	o, ok := other.(MultipleChoice)
	if !ok || len(o.options) != len(m.options) {
		return false
	}
	for i := range m.options {
		if m.options[i] != o.options[i] {
			return false
		}
	}
	return true
}

func (MultipleChoice) sealed() {}

type multipleChoiceJSON struct {
	Type            domain.QuestionType `json:"$type"`
	SelectedOptions []string            `json:"selectedOptions"`
}

func (m MultipleChoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(multipleChoiceJSON{Type: domain.QuestionMultipleChoice, SelectedOptions: m.options})
}

func decodeMultipleChoice(data []byte) (Value, error) {
	var in multipleChoiceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, invalidf("multiple choice answer: %v", err)
	}
	return NewMultipleChoice(in.SelectedOptions, nil)
}

// matchOption finds the single option whose text equals selected, ignoring case and
// surrounding whitespace.
func matchOption(options []domain.QuestionOption, selected string) (int, error) {
	selected = strings.TrimSpace(selected)
	found := -1
	for i, opt := range options {
		if !strings.EqualFold(strings.TrimSpace(opt.Text), selected) {
			continue
		}
		if found >= 0 {
			return -1, invalidf("option %q matches more than one option", selected)
		}
		found = i
	}
	if found < 0 {
		return -1, invalidf("option %q is not one of the question's options", selected)
	}
	return found, nil
}
