package complexity

import (
	"fmt"
	"log/slog"
)

// Analyzed is a task that took part in an analysis run.
type Analyzed struct {
	ID    int
	Title string
}

// FillMissing reconciles the model's entries with the analyzed batch. Entries for
// tasks outside the batch and repeated entries are dropped; every batch task
// without an entry gets a default one. The result has exactly one entry per
// batch task, sorted by task id.
func FillMissing(batch []Analyzed, entries []Entry, logger *slog.Logger) []Entry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	titles := make(map[int]string, len(batch))
	for _, t := range batch {
		titles[t.ID] = t.Title
	}

	seen := make(map[int]bool, len(entries))
	out := make([]Entry, 0, len(batch))
	for _, e := range entries {
		title, inBatch := titles[e.TaskID]
		switch {
		case !inBatch:
			logger.Warn("model analyzed a task outside the batch", "task", e.TaskID)
			continue
		case seen[e.TaskID]:
			logger.Warn("duplicate analysis entry ignored", "task", e.TaskID)
			continue
		}
		seen[e.TaskID] = true
		if e.TaskTitle == "" {
			e.TaskTitle = title
		}
		out = append(out, e)
	}

	for _, t := range batch {
		if seen[t.ID] {
			continue
		}
		logger.Warn("no analysis returned for task, using defaults", "task", t.ID)
		out = append(out, DefaultEntry(t))
	}
	sortEntries(out)
	return out
}

// DefaultEntry is the synthesized analysis for a task the model skipped.
func DefaultEntry(t Analyzed) Entry {
	return Entry{
		TaskID:              t.ID,
		TaskTitle:           t.Title,
		ComplexityScore:     DefaultScore,
		RecommendedSubtasks: DefaultSubtasks,
		ExpansionPrompt:     fmt.Sprintf(defaultExpansionFmt, t.ID, t.Title),
		Reasoning:           defaultReasoning,
	}
}

// Merge combines the previous report's entries with a fresh analysis.
//
// A previous entry is kept only if its task still belongs to the scope and was
// not analyzed in this run; the fresh entries are then added. Each task id
// appears at most once and the output is sorted by task id, so merging the same
// inputs twice gives the same result.
func Merge(previous *Report, fresh []Entry, scopeTaskIDs []int) []Entry {
	inScope := make(map[int]bool, len(scopeTaskIDs))
	for _, id := range scopeTaskIDs {
		inScope[id] = true
	}
	analyzed := make(map[int]bool, len(fresh))
	for _, e := range fresh {
		analyzed[e.TaskID] = true
	}

	var out []Entry
	if previous != nil {
		kept := make(map[int]bool)
		for _, e := range previous.ComplexityAnalysis {
			if !inScope[e.TaskID] || analyzed[e.TaskID] || kept[e.TaskID] {
				continue
			}
			kept[e.TaskID] = true
			out = append(out, e)
		}
	}

	added := make(map[int]bool, len(fresh))
	for _, e := range fresh {
		if added[e.TaskID] {
			continue
		}
		added[e.TaskID] = true
		out = append(out, e)
	}
	sortEntries(out)
	return out
}
