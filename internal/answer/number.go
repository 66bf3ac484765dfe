package answer

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"survey-flow-service/internal/domain"
)

// Number is a decimal answer together with the bounds it was accepted under.
type Number struct {
	value         decimal.Decimal
	minValue      *decimal.Decimal
	maxValue      *decimal.Decimal
	decimalPlaces *int
}

// NewNumber checks value against q's min/max/decimal places. A nil question skips the
// bounds check.
func NewNumber(value decimal.Decimal, q *domain.Question) (Number, error) {
	if q == nil {
		return newNumber(value, nil, nil, nil)
	}
	if q.Type != domain.QuestionNumber {
		return Number{}, wrongType(domain.QuestionNumber, *q)
	}
	return newNumber(value, q.Config.MinValue, q.Config.MaxValue, q.Config.DecimalPlaces)
}

// ParseNumber reads raw with either '.' or ',' as the decimal separator.
func ParseNumber(raw string, q *domain.Question) (Number, error) {
	value, err := parseDecimal(raw)
	if err != nil {
		return Number{}, err
	}
	return NewNumber(value, q)
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, invalidf("number answer cannot be empty")
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			return decimal.Decimal{}, invalidf("number %q mixes ',' and '.' separators", raw)
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, invalidf("%q is not a number", raw)
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, invalidf("%q is not a number", raw)
	}
	return value, nil
}

func newNumber(value decimal.Decimal, minValue, maxValue *decimal.Decimal, places *int) (Number, error) {
	if err := checkNumber(value, minValue, maxValue, places); err != nil {
		return Number{}, err
	}
	return Number{
		value:         value,
		minValue:      copyDecimal(minValue),
		maxValue:      copyDecimal(maxValue),
		decimalPlaces: copyInt(places),
	}, nil
}

func checkNumber(value decimal.Decimal, minValue, maxValue *decimal.Decimal, places *int) error {
	if minValue != nil && maxValue != nil && minValue.GreaterThan(*maxValue) {
		return invalidf("minimum %s is greater than maximum %s", minValue, maxValue)
	}
	if minValue != nil && value.LessThan(*minValue) {
		return invalidf("number %s is less than minimum %s", value, minValue)
	}
	if maxValue != nil && value.GreaterThan(*maxValue) {
		return invalidf("number %s is greater than maximum %s", value, maxValue)
	}
	if places != nil {
		if *places < 0 {
			return invalidf("decimal places %d is negative", *places)
		}
		if n := countDecimalPlaces(value); n > *places {
			return invalidf("number %s has %d decimal places, maximum is %d", value, n, *places)
		}
	}
	return nil
}

// countDecimalPlaces counts fractional digits with trailing zeros stripped.
func countDecimalPlaces(value decimal.Decimal) int {
	s := value.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(strings.TrimRight(s[i+1:], "0"))
}

func (n Number) Value() decimal.Decimal { return n.value }

func (n Number) MinValue() *decimal.Decimal { return copyDecimal(n.minValue) }

func (n Number) MaxValue() *decimal.Decimal { return copyDecimal(n.maxValue) }

func (n Number) DecimalPlaces() *int { return copyInt(n.decimalPlaces) }

func (Number) Type() domain.QuestionType { return domain.QuestionNumber }

func (n Number) DisplayValue() string { return n.value.String() }

func (n Number) IsValidFor(q domain.Question) bool {
	if q.Type != domain.QuestionNumber {
		return false
	}
	return checkNumber(n.value, q.Config.MinValue, q.Config.MaxValue, q.Config.DecimalPlaces) == nil
}

func (n Number) Equal(other Value) bool {
	o, ok := other.(Number)
	return ok &&
		n.value.Equal(o.value) &&
		equalDecimal(n.minValue, o.minValue) &&
		equalDecimal(n.maxValue, o.maxValue) &&
		equalInt(n.decimalPlaces, o.decimalPlaces)
}

func (Number) sealed() {}

type numberJSON struct {
	Type          domain.QuestionType `json:"$type"`
	Value         *decimal.Decimal    `json:"value"`
	MinValue      *decimal.Decimal    `json:"minValue,omitempty"`
	MaxValue      *decimal.Decimal    `json:"maxValue,omitempty"`
	DecimalPlaces *int                `json:"decimalPlaces,omitempty"`
}

func (n Number) MarshalJSON() ([]byte, error) {
	v := n.value
	return json.Marshal(numberJSON{
		Type:          domain.QuestionNumber,
		Value:         &v,
		MinValue:      n.minValue,
		MaxValue:      n.maxValue,
		DecimalPlaces: n.decimalPlaces,
	})
}

func decodeNumber(data []byte) (Value, error) {
	var in numberJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, invalidf("number answer: %v", err)
	}
	if in.Value == nil {
		return nil, invalidf("number answer has no value")
	}
	return newNumber(*in.Value, in.MinValue, in.MaxValue, in.DecimalPlaces)
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

func equalDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
