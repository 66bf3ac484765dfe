package flow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-flow-service/internal/domain"
)

func goTo(id int64) *domain.NextStep {
	step, err := domain.GoToQuestion(id)
	if err != nil {
		panic(err)
	}
	return &step
}

func end() *domain.NextStep {
	step := domain.EndSurvey()
	return &step
}

func text(id int64, order int, next *domain.NextStep) domain.Question {
	return domain.Question{ID: id, Text: "q", Type: domain.QuestionText, OrderIndex: order, DefaultNext: next}
}

func TestDetectCycleClosedWalk(t *testing.T) {
	g := Build([]domain.Question{
		text(1, 0, goTo(2)),
		text(2, 1, goTo(3)),
		text(3, 2, goTo(1)),
	}, AbsentSequential)

	result := g.DetectCycle()
	require.True(t, result.HasCycle)
	assert.Equal(t, []int64{1, 2, 3, 1}, result.CyclePath)
	assert.Equal(t, "cycle detected: 1 -> 2 -> 3 -> 1", result.Message)

	report := g.Validate()
	assert.False(t, report.Valid)
	assert.Nil(t, report.Endpoints, "endpoint check is skipped once a cycle is found")
}

func TestCyclePathOnlyCoversTheLoop(t *testing.T) {
	g := Build([]domain.Question{
		text(1, 0, goTo(2)),
		text(2, 1, goTo(3)),
		text(3, 2, goTo(4)),
		text(4, 3, goTo(2)),
	}, AbsentSequential)

	result := g.DetectCycle()
	require.True(t, result.HasCycle)
	assert.Equal(t, []int64{2, 3, 4, 2}, result.CyclePath)
}

func TestSelfLoop(t *testing.T) {
	result := Build([]domain.Question{text(5, 0, goTo(5))}, AbsentSequential).DetectCycle()
	require.True(t, result.HasCycle)
	assert.Equal(t, []int64{5, 5}, result.CyclePath)
}

func TestNoEndpointWithoutCycle(t *testing.T) {
	// Every step is an explicit GoToQuestion; the last one points outside the survey.
	g := Build([]domain.Question{
		text(1, 0, goTo(2)),
		text(2, 1, goTo(3)),
		text(3, 2, goTo(99)),
	}, AbsentSequential)

	report := g.Validate()
	assert.False(t, report.Cycle.HasCycle)
	assert.False(t, report.Valid)
	assert.Empty(t, report.Endpoints)
	assert.Equal(t, "no question can end the survey", report.Message)
	require.Len(t, report.Dangling, 1)
	assert.Equal(t, DanglingReference{QuestionID: 3, TargetID: 99}, report.Dangling[0])
	assert.Empty(t, g.Edges(3), "dangling targets are not edges")
}

func TestBranchingEndpoint(t *testing.T) {
	branching := domain.Question{
		ID: 1, Type: domain.QuestionSingleChoice, OrderIndex: 0,
		Options: []domain.QuestionOption{
			{ID: 10, Text: "Stop", Next: end()},
			{ID: 11, Text: "Go on", OrderIndex: 1, Next: goTo(2)},
		},
	}
	g := Build([]domain.Question{branching, text(2, 1, goTo(1))}, AbsentSequential)

	assert.Equal(t, []int64{1}, g.Endpoints())
	result := g.DetectCycle()
	assert.True(t, result.HasCycle, "2 -> 1 -> 2 is still a cycle")

	g = Build([]domain.Question{branching, text(2, 1, end())}, AbsentSequential)
	report := g.Validate()
	assert.True(t, report.Valid)
	assert.Equal(t, []int64{1, 2}, report.Endpoints)
}

func TestAbsentNextPolicies(t *testing.T) {
	questions := []domain.Question{
		text(3, 2, nil),
		text(1, 0, nil),
		text(2, 1, nil),
	}

	sequential := Build(questions, AbsentSequential)
	assert.Equal(t, []int64{1, 2, 3}, sequential.Order())
	assert.Equal(t, []int64{2}, sequential.Edges(1))
	assert.Equal(t, []int64{3}, sequential.Endpoints())

	legacy := Build(questions, AbsentEnd)
	assert.Empty(t, legacy.Edges(1))
	assert.Equal(t, []int64{1, 2, 3}, legacy.Endpoints())
	assert.True(t, legacy.Validate().Valid)
}

func TestDisconnectedComponents(t *testing.T) {
	g := Build([]domain.Question{
		text(1, 0, end()),
		text(2, 1, goTo(3)),
		text(3, 2, goTo(2)),
	}, AbsentSequential)

	result := g.DetectCycle()
	require.True(t, result.HasCycle, "a cycle unreachable from the first question still counts")
	assert.Equal(t, []int64{2, 3, 2}, result.CyclePath)
}

func TestNext(t *testing.T) {
	branching := domain.Question{
		ID: 1, Type: domain.QuestionSingleChoice, OrderIndex: 0,
		Options: []domain.QuestionOption{
			{ID: 10, Text: "A", Next: goTo(3)},
			{ID: 11, Text: "B", OrderIndex: 1},
		},
		DefaultNext: goTo(2),
	}
	g := Build([]domain.Question{branching, text(2, 1, nil), text(3, 2, goTo(42))}, AbsentSequential)

	target, err := g.Next(1, 0)
	require.NoError(t, err)
	assert.Equal(t, Target{QuestionID: 3}, target)

	target, err = g.Next(1, 1)
	require.NoError(t, err)
	assert.Equal(t, Target{QuestionID: 2}, target, "option without a step falls back to defaultNext")

	target, err = g.Next(1, -1)
	require.NoError(t, err)
	assert.Equal(t, Target{QuestionID: 2}, target)

	target, err = g.Next(2, -1)
	require.NoError(t, err)
	assert.Equal(t, Target{QuestionID: 3}, target)

	_, err = g.Next(3, -1)
	assert.True(t, errors.Is(err, domain.ErrQuestionNotFound))

	_, err = g.Next(7, -1)
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestBuildIgnoresDuplicateIDs(t *testing.T) {
	g := Build([]domain.Question{text(1, 0, nil), text(1, 1, goTo(1)), text(2, 2, nil)}, AbsentSequential)
	assert.Equal(t, 2, g.Len())
	assert.False(t, g.DetectCycle().HasCycle)

	first, ok := g.First()
	require.True(t, ok)
	assert.Equal(t, int64(1), first.ID)
}

func TestParseAbsentNextPolicy(t *testing.T) {
	p, err := ParseAbsentNextPolicy("")
	require.NoError(t, err)
	assert.Equal(t, AbsentSequential, p)

	p, err = ParseAbsentNextPolicy("end")
	require.NoError(t, err)
	assert.Equal(t, AbsentEnd, p)

	_, err = ParseAbsentNextPolicy("random")
	assert.Error(t, err)
}

func TestValidateEmptySurvey(t *testing.T) {
	report := Validate(nil, AbsentSequential)
	assert.False(t, report.Valid)
	assert.False(t, report.Cycle.HasCycle)
}

func rating(id int64, order int, defaultNext *domain.NextStep, labels map[string]*domain.NextStep) domain.Question {
	q := domain.Question{ID: id, Type: domain.QuestionRating, OrderIndex: order, DefaultNext: defaultNext}
	for label, next := range labels {
		q.Options = append(q.Options, domain.QuestionOption{ID: id*10 + int64(len(q.Options)), Text: label, Next: next})
	}
	return q
}

func TestUnlabelledRatingsRouteThroughDefault(t *testing.T) {
	questions := []domain.Question{
		text(1, 0, goTo(2)),
		rating(2, 1, goTo(1), map[string]*domain.NextStep{"5": end()}),
	}
	g := Build(questions, AbsentSequential)

	assert.Equal(t, []int64{1}, g.Edges(2), "a rating of 3 follows defaultNext back to 1")
	result := g.DetectCycle()
	require.True(t, result.HasCycle)
	assert.Equal(t, []int64{1, 2, 1}, result.CyclePath)
	assert.False(t, g.Validate().Valid)

	target, err := g.Next(2, -1)
	require.NoError(t, err)
	assert.Equal(t, Target{QuestionID: 1}, target)
}

func TestFullyLabelledRatingScaleHasNoFallbackEdge(t *testing.T) {
	lo, hi := 1, 3
	q := rating(2, 1, goTo(1), map[string]*domain.NextStep{"1": end(), "2": end(), " 3 ": end()})
	q.Config = domain.QuestionConfig{MinRating: &lo, MaxRating: &hi}
	g := Build([]domain.Question{text(1, 0, goTo(2)), q}, AbsentSequential)

	assert.Empty(t, g.Edges(2))
	assert.False(t, g.DetectCycle().HasCycle)
	assert.True(t, g.Validate().Valid)
}

func TestDetectCycleFailsClosed(t *testing.T) {
	var g *Graph
	result := g.DetectCycle()

	assert.True(t, result.HasCycle, "an internal failure must refuse the survey")
	assert.Empty(t, result.CyclePath)
	assert.Contains(t, result.Message, "cycle detection failed")
}
