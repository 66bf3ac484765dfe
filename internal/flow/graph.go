// Package flow builds the directed question graph of a survey and checks it for
// cycles and reachable endpoints. It is pure: callers pass an immutable snapshot of
// questions and decide what to log from the returned results.
package flow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"survey-flow-service/internal/domain"
)

// AbsentNextPolicy decides what a missing NextStep means.
type AbsentNextPolicy string

const (
	// AbsentSequential proceeds to the next question by order index; past the last
	// question the survey ends.
	AbsentSequential AbsentNextPolicy = "sequential"
	// AbsentEnd treats a missing step as EndSurvey, matching older survey data.
	AbsentEnd AbsentNextPolicy = "end"
)

// ParseAbsentNextPolicy maps a config value onto a policy; empty means sequential.
func ParseAbsentNextPolicy(raw string) (AbsentNextPolicy, error) {
	switch AbsentNextPolicy(raw) {
	case "", AbsentSequential:
		return AbsentSequential, nil
	case AbsentEnd:
		return AbsentEnd, nil
	}
	return "", fmt.Errorf("unknown absent next-step policy %q", raw)
}

// Target is a resolved step: either a question to go to or the end of the survey.
type Target struct {
	End        bool  `json:"end"`
	QuestionID int64 `json:"questionId,omitempty"`
}

// DanglingReference is a GoToQuestion whose target is not part of the survey.
type DanglingReference struct {
	QuestionID int64 `json:"questionId"`
	OptionID   int64 `json:"optionId,omitempty"`
	TargetID   int64 `json:"targetId"`
}

// Graph is the adjacency view of one survey snapshot. Nodes are question ids.
type Graph struct {
	policy    AbsentNextPolicy
	order     []int64
	position  map[int64]int
	questions map[int64]domain.Question
	edges     map[int64][]int64
	terminal  map[int64]bool
	dangling  []DanglingReference
}

// Build derives the graph from questions. Sequential policy adds an edge from each
// question without a step to its successor by order index.
func Build(questions []domain.Question, policy AbsentNextPolicy) *Graph {
	if policy == "" {
		policy = AbsentSequential
	}
	sorted := append([]domain.Question(nil), questions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OrderIndex != sorted[j].OrderIndex {
			return sorted[i].OrderIndex < sorted[j].OrderIndex
		}
		return sorted[i].ID < sorted[j].ID
	})

	g := &Graph{
		policy:    policy,
		order:     make([]int64, 0, len(sorted)),
		position:  make(map[int64]int, len(sorted)),
		questions: make(map[int64]domain.Question, len(sorted)),
		edges:     make(map[int64][]int64, len(sorted)),
		terminal:  make(map[int64]bool),
	}
	for _, q := range sorted {
		if _, dup := g.questions[q.ID]; dup {
			continue
		}
		g.position[q.ID] = len(g.order)
		g.order = append(g.order, q.ID)
		g.questions[q.ID] = q
	}

	for _, id := range g.order {
		q := g.questions[id]
		seen := make(map[int64]struct{})
		addTarget := func(t Target, optionID int64) {
			if t.End {
				g.terminal[id] = true
				return
			}
			if _, ok := g.questions[t.QuestionID]; !ok {
				g.dangling = append(g.dangling, DanglingReference{QuestionID: id, OptionID: optionID, TargetID: t.QuestionID})
				return
			}
			if _, ok := seen[t.QuestionID]; ok {
				return
			}
			seen[t.QuestionID] = struct{}{}
			g.edges[id] = append(g.edges[id], t.QuestionID)
		}

		if q.SupportsBranching() && len(q.Options) > 0 {
			for _, opt := range q.Options {
				addTarget(g.resolve(q, opt.Next), opt.ID)
			}
			if !coversEveryAnswer(q) {
				addTarget(g.resolve(q, nil), 0)
			}
			continue
		}
		addTarget(g.resolve(q, nil), 0)
	}
	return g
}

// coversEveryAnswer reports whether every valid answer to a branching question
// selects one of its options. A rating outside the labelled options falls back to
// the question's default route.
func coversEveryAnswer(q domain.Question) bool {
	if q.Type != domain.QuestionRating {
		return true
	}
	lo, hi := q.Config.RatingBounds()
	if hi < lo || hi-lo+1 > len(q.Options) {
		return false
	}
	labels := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		labels[strings.TrimSpace(opt.Text)] = struct{}{}
	}
	for v := lo; v <= hi; v++ {
		if _, ok := labels[strconv.Itoa(v)]; !ok {
			return false
		}
	}
	return true
}

// resolve applies the precedence option step, then default step, then the absent policy.
func (g *Graph) resolve(q domain.Question, optionStep *domain.NextStep) Target {
	step := optionStep
	if step == nil {
		step = q.DefaultNext
	}
	if step != nil {
		if step.IsEndSurvey() {
			return Target{End: true}
		}
		id, _ := step.NextQuestionID()
		return Target{QuestionID: id}
	}
	if g.policy == AbsentEnd {
		return Target{End: true}
	}
	next := g.position[q.ID] + 1
	if next >= len(g.order) {
		return Target{End: true}
	}
	return Target{QuestionID: g.order[next]}
}

// Len is the number of distinct questions in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// Order lists question ids by order index.
func (g *Graph) Order() []int64 {
	return append([]int64(nil), g.order...)
}

// Edges returns the outgoing edges of a question.
func (g *Graph) Edges(questionID int64) []int64 {
	return append([]int64(nil), g.edges[questionID]...)
}

// Dangling lists GoToQuestion targets missing from the survey. They are not edges.
func (g *Graph) Dangling() []DanglingReference {
	return append([]DanglingReference(nil), g.dangling...)
}

// Question returns the snapshot of a question in the graph.
func (g *Graph) Question(id int64) (domain.Question, bool) {
	q, ok := g.questions[id]
	return q, ok
}

// First is the question respondents start with.
func (g *Graph) First() (domain.Question, bool) {
	if len(g.order) == 0 {
		return domain.Question{}, false
	}
	return g.questions[g.order[0]], true
}

// Next resolves where a respondent goes after answering questionID. optionIndex is
// the position of the chosen option for branching questions, or -1.
func (g *Graph) Next(questionID int64, optionIndex int) (Target, error) {
	q, ok := g.questions[questionID]
	if !ok {
		return Target{}, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, questionID)
	}
	var step *domain.NextStep
	if q.SupportsBranching() && optionIndex >= 0 && optionIndex < len(q.Options) {
		step = q.Options[optionIndex].Next
	}
	t := g.resolve(q, step)
	if !t.End {
		if _, ok := g.questions[t.QuestionID]; !ok {
			return Target{}, fmt.Errorf("%w: question %d routes to missing question %d", domain.ErrQuestionNotFound, questionID, t.QuestionID)
		}
	}
	return t, nil
}
