// Package retrieval selects and assembles task context for prompts: a
// deterministic relevance ranker over the task corpus and a bounded context
// gatherer over tasks, files and free text.
package retrieval

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/josephgoksu/taskforge/internal/task"
)

// Item is one addressable leaf of the task corpus: a task ("3") or a subtask ("3.1").
type Item struct {
	ID          string    `json:"id"`
	TaskNumber  int       `json:"taskId"`
	SubNumber   int       `json:"subtaskId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// Flatten expands tasks and their subtasks into items, in task order. Subtasks
// inherit their parent's modification time.
func Flatten(tasks []task.Task) []Item {
	var items []Item
	for _, t := range tasks {
		items = append(items, Item{
			ID:          task.Ref{Task: t.Number}.String(),
			TaskNumber:  t.Number,
			Title:       t.Title,
			Description: t.Description,
			Status:      string(t.Status),
			UpdatedAt:   t.UpdatedAt,
		})
		for _, s := range t.Subtasks {
			items = append(items, Item{
				ID:          task.Ref{Task: t.Number, Subtask: s.Number}.String(),
				TaskNumber:  t.Number,
				SubNumber:   s.Number,
				Title:       s.Title,
				Description: s.Description,
				Status:      string(s.Status),
				UpdatedAt:   t.UpdatedAt,
			})
		}
	}
	return items
}

// Weights are the coefficients of the score components.
type Weights struct {
	Overlap  float64 `json:"overlap"`
	Recency  float64 `json:"recency"`
	Category float64 `json:"category"`
	Fuzzy    float64 `json:"fuzzy"`
}

// DefaultWeights favor token overlap.
var DefaultWeights = Weights{Overlap: 0.6, Recency: 0.15, Category: 0.15, Fuzzy: 0.1}

// RankOptions control one ranking call.
type RankOptions struct {
	MaxResults             int
	IncludeRecent          bool
	IncludeCategoryMatches bool
}

// Scored is a ranked item with its score breakdown.
type Scored struct {
	Item     Item    `json:"item"`
	Score    float64 `json:"score"`
	Overlap  float64 `json:"overlap"`
	Recency  float64 `json:"recency,omitempty"`
	Category float64 `json:"category,omitempty"`
	Fuzzy    float64 `json:"fuzzy,omitempty"`
}

// Ranker scores items against a query. Given the same items, query, options and
// clock it always returns the same order.
type Ranker struct {
	categories   *task.Categories
	weights      Weights
	recentWindow time.Duration
	now          func() time.Time
}

// RankerOption customizes a Ranker.
type RankerOption func(*Ranker)

// WithWeights overrides DefaultWeights.
func WithWeights(w Weights) RankerOption { return func(r *Ranker) { r.weights = w } }

// WithRecentWindow sets how far back an update earns the recency bonus.
func WithRecentWindow(d time.Duration) RankerOption {
	return func(r *Ranker) { r.recentWindow = d }
}

// WithClock sets the time source used for recency.
func WithClock(now func() time.Time) RankerOption { return func(r *Ranker) { r.now = now } }

// DefaultRecentWindow is the recency window when none is configured.
const DefaultRecentWindow = 72 * time.Hour

// NewRanker returns a Ranker using the given keyword buckets.
func NewRanker(categories *task.Categories, opts ...RankerOption) *Ranker {
	if categories == nil {
		categories = task.NewCategories(nil)
	}
	r := &Ranker{
		categories:   categories,
		weights:      DefaultWeights,
		recentWindow: DefaultRecentWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores items against query and returns at most opts.MaxResults of them,
// best first. Items with no overlap, category or fuzzy signal are left out;
// recency only boosts items that are otherwise relevant. Ties go to the lower
// task number, then the lower subtask number.
func (r *Ranker) Rank(items []Item, query string, opts RankOptions) []Scored {
	queryTokens := task.Tokenize(query, r.categories.MinWordLength())
	if len(queryTokens) == 0 && strings.TrimSpace(query) == "" {
		return nil
	}

	var queryCats map[string]bool
	if opts.IncludeCategoryMatches {
		queryCats = toSet(r.categories.Match(query))
	}
	fuzzyScores := r.fuzzyTitles(items, query)
	now := r.now()

	var out []Scored
	for i, it := range items {
		text := it.Title + " " + it.Description
		s := Scored{Item: it}
		s.Overlap = overlap(queryTokens, task.Tokenize(text, r.categories.MinWordLength()))
		s.Fuzzy = fuzzyScores[i]
		if len(queryCats) > 0 {
			for _, c := range r.categories.Match(text) {
				if queryCats[c] {
					s.Category = 1
					break
				}
			}
		}
		if s.Overlap == 0 && s.Category == 0 && s.Fuzzy == 0 {
			continue
		}
		if opts.IncludeRecent {
			s.Recency = r.recency(it.UpdatedAt, now)
		}
		s.Score = r.weights.Overlap*s.Overlap +
			r.weights.Recency*s.Recency +
			r.weights.Category*s.Category +
			r.weights.Fuzzy*s.Fuzzy
		out = append(out, s)
	}

	slices.SortStableFunc(out, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Item.TaskNumber, b.Item.TaskNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.Item.SubNumber, b.Item.SubNumber)
	})

	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}

// IDs returns the item identifiers of scored, in order.
func IDs(scored []Scored) []string {
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.Item.ID
	}
	return ids
}

// overlap is the share of query tokens present in the document.
func overlap(query, doc []string) float64 {
	if len(query) == 0 {
		return 0
	}
	docSet := toSet(doc)
	hits := 0
	for _, q := range query {
		if docSet[q] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// recency decays linearly from 1 (just updated) to 0 at the window edge.
func (r *Ranker) recency(updated, now time.Time) float64 {
	if updated.IsZero() || r.recentWindow <= 0 {
		return 0
	}
	age := now.Sub(updated)
	if age < 0 {
		age = 0
	}
	if age >= r.recentWindow {
		return 0
	}
	return 1 - float64(age)/float64(r.recentWindow)
}

// fuzzyTitles returns a 0..1 subsequence-match score per item title, normalized
// by the best match in the corpus.
func (r *Ranker) fuzzyTitles(items []Item, query string) []float64 {
	scores := make([]float64, len(items))
	pattern := strings.TrimSpace(query)
	if pattern == "" || len(items) == 0 {
		return scores
	}

	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	matches := fuzzy.Find(pattern, titles)
	if len(matches) == 0 {
		return scores
	}

	best := 0
	for _, m := range matches {
		best = max(best, m.Score)
	}
	for _, m := range matches {
		if best <= 0 {
			scores[m.Index] = 1
			continue
		}
		scores[m.Index] = max(0, float64(m.Score)/float64(best))
		if scores[m.Index] == 0 {
			// Matched, but weaker than any positively scored title.
			scores[m.Index] = 0.01
		}
	}
	return scores
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
