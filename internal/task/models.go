package task

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TaskStatus represents the lifecycle state of a task or subtask.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusDeferred   TaskStatus = "deferred"
	StatusCancelled  TaskStatus = "cancelled"

	// StatusCompleted is accepted on input as a synonym for done.
	StatusCompleted TaskStatus = "completed"
)

// Priority is the relative importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultScope is the scope used when a caller does not name one.
const DefaultScope = "master"

var validStatuses = []TaskStatus{
	StatusPending, StatusInProgress, StatusReview, StatusDone, StatusDeferred, StatusCancelled,
}

// ParseStatus normalizes free-form status text. Unknown values return false.
func ParseStatus(s string) (TaskStatus, bool) {
	v := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "in_progress", "inprogress":
		v = StatusInProgress
	case StatusCompleted:
		v = StatusDone
	case "canceled":
		v = StatusCancelled
	}
	if slices.Contains(validStatuses, v) {
		return v, true
	}
	return "", false
}

// IsFinished reports whether the status is done (or its completed synonym).
func (s TaskStatus) IsFinished() bool {
	return s == StatusDone || s == StatusCompleted
}

// ParsePriority normalizes free-form priority text. Unknown values return false.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

// Details holds the free-form implementation notes of a task or subtask.
type Details struct {
	Implementation string            `json:"implementation,omitempty"`
	TestStrategy   string            `json:"testStrategy,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// IsZero reports whether no detail field is set.
func (d Details) IsZero() bool {
	return d.Implementation == "" && d.TestStrategy == "" && len(d.Extra) == 0
}

// Task is a numbered unit of work inside a scope.
type Task struct {
	Number       int        `json:"id" validate:"gte=1"`
	Title        string     `json:"title" validate:"required,max=300"`
	Description  string     `json:"description"`
	Status       TaskStatus `json:"status" validate:"required,oneof=pending in-progress review done deferred cancelled"`
	Priority     Priority   `json:"priority" validate:"required,oneof=low medium high"`
	Dependencies []int      `json:"dependencies"`
	Details      Details    `json:"details"`
	Subtasks     []Subtask  `json:"subtasks,omitempty" validate:"dive"`
	CreatedAt    time.Time  `json:"createdAt,omitzero"`
	UpdatedAt    time.Time  `json:"updatedAt,omitzero"`
}

// Subtask is an ordered child of a Task, numbered 1..N within its parent.
type Subtask struct {
	Number      int        `json:"id" validate:"gte=1"`
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status" validate:"required,oneof=pending in-progress review done deferred cancelled"`
	Details     Details    `json:"details"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *Priority
	Dependencies *[]int
	Details      *Details
	// Subtasks replaces the whole list, renumbered 1..N.
	Subtasks *[]Subtask
}

// Apply returns a copy of t with the patch applied.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Dependencies != nil {
		t.Dependencies = slices.Clone(*p.Dependencies)
	}
	if p.Details != nil {
		t.Details = *p.Details
	}
	if p.Subtasks != nil {
		t.Subtasks = RenumberSubtasks(*p.Subtasks)
	}
	return t
}

// HistoryEntry is one audit record for a mutating operation.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Scope      string    `json:"scope"`
	TaskNumber int       `json:"taskId,omitempty"`
	Operation  string    `json:"operation"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"createdAt"`
}

var validate = validator.New()

// Validate checks the task against its struct rules.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title required")
	}
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid task %d: %w", t.Number, err)
	}
	return nil
}

// ApplyDefaults fills status and priority when absent.
func (t *Task) ApplyDefaults() {
	if s, ok := ParseStatus(string(t.Status)); ok {
		t.Status = s
	} else {
		t.Status = StatusPending
	}
	if p, ok := ParsePriority(string(t.Priority)); ok {
		t.Priority = p
	} else {
		t.Priority = PriorityMedium
	}
	for i := range t.Subtasks {
		if s, ok := ParseStatus(string(t.Subtasks[i].Status)); ok {
			t.Subtasks[i].Status = s
		} else {
			t.Subtasks[i].Status = StatusPending
		}
	}
}

// Subtask returns the subtask with the given number.
func (t *Task) Subtask(number int) (*Subtask, bool) {
	for i := range t.Subtasks {
		if t.Subtasks[i].Number == number {
			return &t.Subtasks[i], true
		}
	}
	return nil, false
}

// HasDependency reports whether number is already a dependency of t.
func (t *Task) HasDependency(number int) bool {
	return slices.Contains(t.Dependencies, number)
}

// RenumberSubtasks assigns 1..N in list order, closing any gaps.
func RenumberSubtasks(subs []Subtask) []Subtask {
	out := make([]Subtask, len(subs))
	for i, s := range subs {
		s.Number = i + 1
		if s.Status == "" {
			s.Status = StatusPending
		}
		out[i] = s
	}
	return out
}

// MaxNumber returns the highest task number in tasks, or 0.
func MaxNumber(tasks []Task) int {
	highest := 0
	for _, t := range tasks {
		highest = max(highest, t.Number)
	}
	return highest
}

// ByNumber indexes tasks by number.
func ByNumber(tasks []Task) map[int]*Task {
	m := make(map[int]*Task, len(tasks))
	for i := range tasks {
		m[tasks[i].Number] = &tasks[i]
	}
	return m
}

// Ref addresses a task ("7") or a subtask ("7.2").
type Ref struct {
	Task    int
	Subtask int
}

func (r Ref) String() string {
	if r.Subtask > 0 {
		return fmt.Sprintf("%d.%d", r.Task, r.Subtask)
	}
	return strconv.Itoa(r.Task)
}

// IsSubtask reports whether the reference names a subtask.
func (r Ref) IsSubtask() bool { return r.Subtask > 0 }

// ParseRef parses "7" or "7.2".
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	parent, child, hasDot := strings.Cut(s, ".")
	n, err := strconv.Atoi(parent)
	if err != nil || n < 1 {
		return Ref{}, fmt.Errorf("invalid task id %q", s)
	}
	if !hasDot {
		return Ref{Task: n}, nil
	}
	m, err := strconv.Atoi(child)
	if err != nil || m < 1 {
		return Ref{}, fmt.Errorf("invalid subtask id %q", s)
	}
	return Ref{Task: n, Subtask: m}, nil
}

// stopWords are common words excluded from keyword extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "need": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "i": true, "we": true,
	"you": true, "he": true, "she": true, "they": true, "them": true, "their": true,
	"what": true, "which": true, "who": true, "whom": true, "when": true, "where": true,
	"why": true, "how": true, "all": true, "each": true, "every": true, "both": true,
	"few": true, "more": true, "most": true, "other": true, "some": true, "such": true,
	"no": true, "nor": true, "not": true, "only": true, "own": true, "same": true,
	"so": true, "than": true, "too": true, "very": true, "just": true, "also": true,
}

var nonWordRegex = regexp.MustCompile(`[^a-z0-9\s]`)

// Tokenize lowercases text, strips punctuation and returns the words of at least
// minLen characters that are not stop words, in order of first appearance.
func Tokenize(text string, minLen int) []string {
	text = nonWordRegex.ReplaceAllString(strings.ToLower(text), " ")
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(text) {
		if len(w) < minLen || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}
