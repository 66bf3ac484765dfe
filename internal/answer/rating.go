package answer

import (
	"encoding/json"
	"strconv"

	"survey-flow-service/internal/domain"
)

// Rating is a point on the question's rating scale.
type Rating struct {
	value int
}

// NewRating checks value against q's scale (1..5 unless configured). A nil question
// means the value was validated before and is accepted as given.
func NewRating(value int, q *domain.Question) (Rating, error) {
	if q != nil {
		if q.Type != domain.QuestionRating {
			return Rating{}, wrongType(domain.QuestionRating, *q)
		}
		if err := checkRating(value, q.Config); err != nil {
			return Rating{}, err
		}
	}
	return Rating{value: value}, nil
}

func checkRating(value int, cfg domain.QuestionConfig) error {
	lo, hi := cfg.RatingBounds()
	if value < lo {
		return invalidf("rating %d is below minimum %d", value, lo)
	}
	if value > hi {
		return invalidf("rating %d is above maximum %d", value, hi)
	}
	return nil
}

func (r Rating) Value() int { return r.value }

func (Rating) Type() domain.QuestionType { return domain.QuestionRating }

func (r Rating) DisplayValue() string { return strconv.Itoa(r.value) }

func (r Rating) IsValidFor(q domain.Question) bool {
	return q.Type == domain.QuestionRating && checkRating(r.value, q.Config) == nil
}

func (r Rating) Equal(other Value) bool {
	o, ok := other.(Rating)
	return ok && o.value == r.value
}

func (Rating) sealed() {}

type ratingJSON struct {
	Type   domain.QuestionType `json:"$type"`
	Rating *int                `json:"rating"`
}

func (r Rating) MarshalJSON() ([]byte, error) {
	v := r.value
	return json.Marshal(ratingJSON{Type: domain.QuestionRating, Rating: &v})
}

func decodeRating(data []byte) (Value, error) {
	var in ratingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, invalidf("rating answer: %v", err)
	}
	if in.Rating == nil {
		return nil, invalidf("rating answer has no rating")
	}
	return NewRating(*in.Rating, nil)
}
