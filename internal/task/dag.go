package task

import (
	"fmt"
	"slices"
)

// Graph maps a task number to the numbers it depends on.
type Graph map[int][]int

// GraphOf builds the dependency graph of tasks.
func GraphOf(tasks []Task) Graph {
	g := make(Graph, len(tasks))
	for _, t := range tasks {
		g[t.Number] = slices.Clone(t.Dependencies)
	}
	return g
}

// WouldCreateCycle reports whether adding the edge from -> to (from depends on to)
// closes a cycle. It walks depth-first from to along existing dependency edges and
// answers true if from is reachable. A self edge is always a cycle.
//
// The visited set is created per call; g is never modified.
func WouldCreateCycle(g Graph, from, to int) bool {
	if from == to {
		return true
	}
	return reaches(g, to, from, make(map[int]bool))
}

// OnCycle reports whether the stored edge from -> to lies on a cycle, that is
// whether from is reachable from to. Cycles elsewhere in g are ignored.
func OnCycle(g Graph, from, to int) bool {
	return reaches(g, to, from, make(map[int]bool))
}

// reaches is an iterative DFS with an explicit frontier.
func reaches(g Graph, start, target int, visited map[int]bool) bool {
	frontier := []int{start}
	for len(frontier) > 0 {
		n := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if n == target {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, dep := range g[n] {
			if !visited[dep] {
				frontier = append(frontier, dep)
			}
		}
	}
	return false
}

// VerifyDAG checks that the tasks form a directed acyclic graph.
// Dependencies on tasks outside the slice are ignored.
func VerifyDAG(tasks []Task) error {
	g := GraphOf(tasks)

	visited := make(map[int]bool)
	recursionStack := make(map[int]bool)

	var checkCycle func(n int) error
	checkCycle = func(n int) error {
		visited[n] = true
		recursionStack[n] = true

		deps, exists := g[n]
		if !exists {
			recursionStack[n] = false
			return nil
		}

		for _, dep := range deps {
			if !visited[dep] {
				if err := checkCycle(dep); err != nil {
					return err
				}
			} else if recursionStack[dep] {
				return fmt.Errorf("cycle detected involving task %d -> %d", n, dep)
			}
		}

		recursionStack[n] = false
		return nil
	}

	for _, t := range tasks {
		if !visited[t.Number] {
			if err := checkCycle(t.Number); err != nil {
				return err
			}
		}
	}
	return nil
}

// IssueKind classifies a dependency problem found by ValidateDependencies.
type IssueKind string

const (
	IssueMissing IssueKind = "missing"
	IssueSelf    IssueKind = "self"
	IssueCycle   IssueKind = "cycle"
)

// DependencyIssue is one problem in a scope's dependency graph.
type DependencyIssue struct {
	Task       int       `json:"taskId"`
	Dependency int       `json:"dependsOn"`
	Kind       IssueKind `json:"kind"`
}

// ValidateDependencies lists missing targets, self references and edges that sit on
// a cycle. Issues are ordered by task then dependency number.
func ValidateDependencies(tasks []Task) []DependencyIssue {
	g := GraphOf(tasks)
	var issues []DependencyIssue
	for _, t := range sortedByNumber(tasks) {
		for _, dep := range slices.Sorted(slices.Values(t.Dependencies)) {
			switch {
			case dep == t.Number:
				issues = append(issues, DependencyIssue{Task: t.Number, Dependency: dep, Kind: IssueSelf})
			case !hasTask(tasks, dep):
				issues = append(issues, DependencyIssue{Task: t.Number, Dependency: dep, Kind: IssueMissing})
			case reaches(g, dep, t.Number, make(map[int]bool)):
				issues = append(issues, DependencyIssue{Task: t.Number, Dependency: dep, Kind: IssueCycle})
			}
		}
	}
	return issues
}

func hasTask(tasks []Task, number int) bool {
	return slices.ContainsFunc(tasks, func(t Task) bool { return t.Number == number })
}

func sortedByNumber(tasks []Task) []Task {
	out := slices.Clone(tasks)
	slices.SortFunc(out, func(a, b Task) int { return a.Number - b.Number })
	return out
}
