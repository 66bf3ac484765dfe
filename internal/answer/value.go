// Package answer models a respondent's answer as one of a closed set of typed,
// self-validating values. Values are immutable once built; every constructor
// checks its invariants and nothing rechecks them later.
package answer

import (
	"encoding/json"
	"fmt"

	"survey-flow-service/internal/domain"
)

// typeTag is the discriminator key of the canonical JSON form.
const typeTag = "$type"

// Value is implemented only by the variants in this package.
type Value interface {
	// Type is the question type the value answers.
	Type() domain.QuestionType
	// DisplayValue is a stable, locale-invariant rendering.
	DisplayValue() string
	// IsValidFor re-checks the value against a question's current configuration.
	IsValidFor(q domain.Question) bool
	// Equal compares semantic fields only.
	Equal(other Value) bool

	json.Marshaler
	sealed()
}

// CanonicalForm is the deterministic serialization persisted for v.
func CanonicalForm(v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil answer", domain.ErrInvalidAnswerFormat)
	}
	return json.Marshal(v)
}

// Equal reports whether a and b carry the same answer. Two nils are equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidAnswerFormat}, args...)...)
}

func wrongType(want domain.QuestionType, q domain.Question) error {
	return invalidf("question %d is %s, not %s", q.ID, q.Type, want)
}
