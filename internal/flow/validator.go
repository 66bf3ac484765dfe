package flow

import (
	"fmt"
	"strconv"
	"strings"

	"survey-flow-service/internal/domain"
)

// CycleDetectionResult is the outcome of DetectCycle. CyclePath is a closed walk
// (first id == last id) when a cycle exists.
type CycleDetectionResult struct {
	HasCycle  bool    `json:"hasCycle"`
	CyclePath []int64 `json:"cyclePath,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// DetectCycle runs a three-colour depth-first search from every unvisited question.
// Any internal failure reports a cycle so activation is refused.
func (g *Graph) DetectCycle() (result CycleDetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CycleDetectionResult{
				HasCycle: true,
				Message:  fmt.Sprintf("cycle detection failed: %v", r),
			}
		}
	}()

	visited := make(map[int64]bool, len(g.order))
	onStack := make(map[int64]bool, len(g.order))
	path := make([]int64, 0, len(g.order))

	var visit func(id int64) []int64
	visit = func(id int64) []int64 {
		onStack[id] = true
		path = append(path, id)

		for _, next := range g.edges[id] {
			if onStack[next] {
				return closeCycle(path, next)
			}
			if visited[next] {
				continue
			}
			if cycle := visit(next); cycle != nil {
				return cycle
			}
		}

		onStack[id] = false
		visited[id] = true
		path = path[:len(path)-1]
		return nil
	}

	for _, id := range g.order {
		if visited[id] {
			continue
		}
		if cycle := visit(id); cycle != nil {
			return CycleDetectionResult{
				HasCycle:  true,
				CyclePath: cycle,
				Message:   "cycle detected: " + formatPath(cycle),
			}
		}
	}
	return CycleDetectionResult{Message: "no cycles detected"}
}

// closeCycle cuts the path at the re-entered question and appends it again.
func closeCycle(path []int64, target int64) []int64 {
	start := 0
	for i, id := range path {
		if id == target {
			start = i
			break
		}
	}
	cycle := make([]int64, 0, len(path)-start+1)
	cycle = append(cycle, path[start:]...)
	return append(cycle, target)
}

// Endpoints lists, by order index, the questions whose navigation can end the survey.
func (g *Graph) Endpoints() []int64 {
	out := make([]int64, 0)
	for _, id := range g.order {
		if g.terminal[id] {
			out = append(out, id)
		}
	}
	return out
}

// Report is the full structural verdict for a survey.
type Report struct {
	Valid     bool                 `json:"valid"`
	Cycle     CycleDetectionResult `json:"cycle"`
	Endpoints []int64              `json:"endpoints"`
	Dangling  []DanglingReference  `json:"dangling,omitempty"`
	Message   string               `json:"message,omitempty"`
}

// Validate checks for cycles and, only when there are none, for at least one endpoint.
func Validate(questions []domain.Question, policy AbsentNextPolicy) Report {
	return Build(questions, policy).Validate()
}

// Validate runs the structural checks over g.
func (g *Graph) Validate() Report {
	report := Report{Cycle: g.DetectCycle(), Dangling: g.Dangling()}
	if report.Cycle.HasCycle {
		report.Message = report.Cycle.Message
		return report
	}
	report.Endpoints = g.Endpoints()
	if len(report.Endpoints) == 0 {
		report.Message = "no question can end the survey"
		return report
	}
	report.Valid = true
	report.Message = "survey structure is valid"
	return report
}

func formatPath(path []int64) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, " -> ")
}
