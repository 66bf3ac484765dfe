package domain

import (
	"encoding/json"
	"fmt"
)

// NextStepType tags the two NextStep variants.
type NextStepType string

const (
	StepGoToQuestion NextStepType = "GoToQuestion"
	StepEndSurvey    NextStepType = "EndSurvey"
)

// NextStep is the edge label of the flow graph: either "go to question N" or "end the survey".
// The zero value is not a valid step; use GoToQuestion, EndSurvey or NewNextStep.
type NextStep struct {
	typ            NextStepType
	nextQuestionID int64
}

// GoToQuestion builds a step that routes to the given question.
func GoToQuestion(questionID int64) (NextStep, error) {
	return NewNextStep(StepGoToQuestion, &questionID)
}

// EndSurvey builds a step that finishes the survey.
func EndSurvey() NextStep {
	return NextStep{typ: StepEndSurvey}
}

// NewNextStep validates the type/id combination: GoToQuestion needs a positive id, EndSurvey none.
func NewNextStep(typ NextStepType, nextQuestionID *int64) (NextStep, error) {
	switch typ {
	case StepGoToQuestion:
		if nextQuestionID == nil || *nextQuestionID <= 0 {
			return NextStep{}, fmt.Errorf("%w: GoToQuestion requires a positive question id", ErrValidation)
		}
		return NextStep{typ: StepGoToQuestion, nextQuestionID: *nextQuestionID}, nil
	case StepEndSurvey:
		if nextQuestionID != nil {
			return NextStep{}, fmt.Errorf("%w: EndSurvey must not carry a question id", ErrValidation)
		}
		return EndSurvey(), nil
	default:
		return NextStep{}, fmt.Errorf("%w: unknown next step type %q", ErrValidation, typ)
	}
}

// Type returns the variant tag.
func (s NextStep) Type() NextStepType {
	return s.typ
}

// IsEndSurvey reports whether the step finishes the survey.
func (s NextStep) IsEndSurvey() bool {
	return s.typ == StepEndSurvey
}

// NextQuestionID returns the target question for GoToQuestion steps.
func (s NextStep) NextQuestionID() (int64, bool) {
	if s.typ != StepGoToQuestion {
		return 0, false
	}
	return s.nextQuestionID, true
}

func (s NextStep) String() string {
	if s.typ == StepGoToQuestion {
		return fmt.Sprintf("GoToQuestion(%d)", s.nextQuestionID)
	}
	return string(s.typ)
}

type nextStepJSON struct {
	Type           NextStepType `json:"type"`
	NextQuestionID *int64       `json:"nextQuestionId"`
}

func (s NextStep) MarshalJSON() ([]byte, error) {
	out := nextStepJSON{Type: s.typ}
	if s.typ == StepGoToQuestion {
		id := s.nextQuestionID
		out.NextQuestionID = &id
	}
	return json.Marshal(out)
}

func (s *NextStep) UnmarshalJSON(data []byte) error {
	var in nextStepJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	step, err := NewNextStep(in.Type, in.NextQuestionID)
	if err != nil {
		return err
	}
	*s = step
	return nil
}
