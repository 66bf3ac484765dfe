package answer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"survey-flow-service/internal/domain"
)

// Input is raw respondent input as received from a client. Which fields matter
// depends on the question type.
type Input struct {
	Text            string     `json:"text,omitempty"`
	SelectedOptions []string   `json:"selectedOptions,omitempty"`
	Rating          *int       `json:"rating,omitempty"`
	Number          string     `json:"number,omitempty"`
	Date            string     `json:"date,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	Accuracy        *float64   `json:"accuracy,omitempty"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
}

var decoders = map[domain.QuestionType]func([]byte) (Value, error){
	domain.QuestionText:           decodeText,
	domain.QuestionSingleChoice:   decodeSingleChoice,
	domain.QuestionMultipleChoice: decodeMultipleChoice,
	domain.QuestionRating:         decodeRating,
	domain.QuestionLocation:       decodeLocation,
	domain.QuestionNumber:         decodeNumber,
	domain.QuestionDate:           decodeDate,
}

// CreateFromInput builds and validates the answer for q from raw input.
func CreateFromInput(q domain.Question, in Input) (Value, error) {
	switch q.Type {
	case domain.QuestionText:
		return wrap(NewText(in.Text))
	case domain.QuestionSingleChoice:
		selected := in.Text
		if strings.TrimSpace(selected) == "" {
			switch len(in.SelectedOptions) {
			case 0:
			case 1:
				selected = in.SelectedOptions[0]
			default:
				return nil, invalidf("question %d accepts a single option, got %d", q.ID, len(in.SelectedOptions))
			}
		}
		return wrap(NewSingleChoice(selected, &q))
	case domain.QuestionMultipleChoice:
		return wrap(NewMultipleChoice(in.SelectedOptions, &q))
	case domain.QuestionRating:
		if in.Rating != nil {
			return wrap(NewRating(*in.Rating, &q))
		}
		v, err := strconv.Atoi(strings.TrimSpace(in.Text))
		if err != nil {
			return nil, invalidf("rating %q is not a whole number", in.Text)
		}
		return wrap(NewRating(v, &q))
	case domain.QuestionNumber:
		return wrap(ParseNumber(firstNonBlank(in.Number, in.Text), &q))
	case domain.QuestionDate:
		return wrap(ParseDate(firstNonBlank(in.Date, in.Text), &q))
	case domain.QuestionLocation:
		if in.Latitude == nil || in.Longitude == nil {
			return nil, fmt.Errorf("%w: latitude and longitude are required", domain.ErrInvalidLocation)
		}
		return wrap(NewLocation(*in.Latitude, *in.Longitude, in.Accuracy, in.Timestamp))
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidQuestionType, q.Type)
	}
}

// Parse strictly reads a canonical form; the `$type` tag is required.
func Parse(data []byte) (Value, error) {
	fields, err := decodeFields(data)
	if err != nil {
		return nil, err
	}
	typ, ok, err := taggedType(fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalidf("answer has no %s tag", typeTag)
	}
	return decode(typ, data)
}

// ParseWithTypeDetection reads tagged forms and falls back to structural sniffing for
// records written before the tag existed.
func ParseWithTypeDetection(data []byte) (Value, error) {
	fields, err := decodeFields(data)
	if err != nil {
		return nil, err
	}
	typ, ok, err := taggedType(fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		if typ, ok = DetectType(fields); !ok {
			return nil, invalidf("cannot determine answer type")
		}
	}
	return decode(typ, data)
}

// TryParse is the lenient variant of ParseWithTypeDetection; format errors yield false.
func TryParse(data []byte) (Value, bool) {
	v, err := ParseWithTypeDetection(data)
	if err != nil {
		return nil, false
	}
	return v, true
}

// ParseAs decodes data as the given type. A `$type` tag, if present, must agree.
func ParseAs(data []byte, typ domain.QuestionType) (Value, error) {
	fields, err := decodeFields(data)
	if err != nil {
		return nil, err
	}
	tagged, ok, err := taggedType(fields)
	if err != nil {
		return nil, err
	}
	if ok && tagged != typ {
		return nil, invalidf("answer is tagged %s, expected %s", tagged, typ)
	}
	return decode(typ, data)
}

// DetectType infers an untagged answer's type from the fields present.
func DetectType(fields map[string]json.RawMessage) (domain.QuestionType, bool) {
	has := func(key string) bool {
		_, ok := fields[key]
		return ok
	}
	switch {
	case has("text"):
		return domain.QuestionText, true
	case has("selectedOptions"):
		return domain.QuestionMultipleChoice, true
	case has("selectedOption"):
		return domain.QuestionSingleChoice, true
	case has("rating"):
		return domain.QuestionRating, true
	case has("latitude") && has("longitude"):
		return domain.QuestionLocation, true
	}
	return "", false
}

func decode(typ domain.QuestionType, data []byte) (Value, error) {
	dec, ok := decoders[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", domain.ErrInvalidAnswerFormat, domain.ErrInvalidQuestionType, typ)
	}
	return dec(data)
}

func decodeFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, invalidf("answer is not a JSON object: %v", err)
	}
	if fields == nil {
		return nil, invalidf("answer is empty")
	}
	return fields, nil
}

func taggedType(fields map[string]json.RawMessage) (domain.QuestionType, bool, error) {
	raw, ok := fields[typeTag]
	if !ok {
		return "", false, nil
	}
	var typ domain.QuestionType
	if err := json.Unmarshal(raw, &typ); err != nil {
		return "", false, invalidf("%s tag must be a string", typeTag)
	}
	return typ, true, nil
}

func wrap[T Value](v T, err error) (Value, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
