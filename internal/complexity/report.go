// Package complexity holds the per-scope complexity report, its merge rules and
// the stores it is persisted in.
package complexity

import (
	"cmp"
	"slices"
	"time"
)

// Default values used when the model returns no entry for an analyzed task.
const (
	DefaultScore        = 5
	DefaultSubtasks     = 3
	DefaultThreshold    = 5
	defaultReasoning    = "No analysis was returned for this task; default complexity assumed."
	defaultExpansionFmt = "Break down task %d (%s) into concrete implementation steps."
)

// Entry is the analysis of one task.
type Entry struct {
	TaskID              int    `json:"taskId" validate:"gte=1"`
	TaskTitle           string `json:"taskTitle"`
	ComplexityScore     int    `json:"complexityScore" validate:"gte=1,lte=10"`
	RecommendedSubtasks int    `json:"recommendedSubtasks" validate:"gte=0"`
	ExpansionPrompt     string `json:"expansionPrompt"`
	Reasoning           string `json:"reasoning"`
}

// Meta describes the run that last wrote a report.
type Meta struct {
	GeneratedAt    time.Time `json:"generatedAt"`
	TasksAnalyzed  int       `json:"tasksAnalyzed"`
	ThresholdScore int       `json:"thresholdScore"`
	UsedResearch   bool      `json:"usedResearch"`
	Scope          string    `json:"scope"`
}

// Report is the stored analysis of one scope.
type Report struct {
	Meta               Meta    `json:"meta"`
	ComplexityAnalysis []Entry `json:"complexityAnalysis"`
}

// Entry returns the analysis for taskID.
func (r *Report) Entry(taskID int) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	for _, e := range r.ComplexityAnalysis {
		if e.TaskID == taskID {
			return e, true
		}
	}
	return Entry{}, false
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.TaskID, b.TaskID) })
}
