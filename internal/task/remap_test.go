package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func existingTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{Number: i + 1, Title: "existing", Status: StatusPending, Priority: PriorityMedium}
	}
	return tasks
}

func TestRemap_DropsUnresolvedReference(t *testing.T) {
	drafts := []Draft{
		{LocalID: 1, Title: "Set up schema"},
		{LocalID: 2, Title: "Add API", Dependencies: []int{5}},
		{LocalID: 3, Title: "Write docs", Dependencies: []int{1, 2}},
	}

	res, err := Remap(drafts, existingTasks(4), nil)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 3)

	assert.Equal(t, []int{5, 6, 7}, []int{res.Tasks[0].Number, res.Tasks[1].Number, res.Tasks[2].Number})
	assert.Empty(t, res.Tasks[1].Dependencies, "reference to missing draft must be dropped")
	assert.Equal(t, []int{5, 6}, res.Tasks[2].Dependencies)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, DroppedDependency{Task: 6, Ref: 5, Reason: "unresolved reference"}, res.Dropped[0])
}

func TestRemap_NeverKeepsForwardReferences(t *testing.T) {
	drafts := []Draft{
		{LocalID: 10, Title: "A", Dependencies: []int{11, 10}},
		{LocalID: 11, Title: "B", Dependencies: []int{10, 2}},
		{LocalID: 12, Title: "C", Dependencies: []int{12, 11, 11, 3}},
	}

	res, err := Remap(drafts, existingTasks(3), nil)
	require.NoError(t, err)

	for _, tk := range res.Tasks {
		for _, dep := range tk.Dependencies {
			assert.Less(t, dep, tk.Number, "task %d depends on %d", tk.Number, dep)
		}
	}
	assert.Empty(t, res.Tasks[0].Dependencies)
	assert.Equal(t, []int{2, 4}, res.Tasks[1].Dependencies)
	assert.Equal(t, []int{3, 5}, res.Tasks[2].Dependencies, "duplicates collapse")
	assert.NoError(t, VerifyDAG(append(existingTasks(3), res.Tasks...)))
}

func TestRemap_EmptyScopeStartsAtOne(t *testing.T) {
	res, err := Remap([]Draft{{Title: "first"}, {Title: "second"}}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Tasks[0].Number)
	assert.Equal(t, 2, res.Tasks[1].Number)
	assert.Equal(t, StatusPending, res.Tasks[0].Status)
	assert.Equal(t, PriorityMedium, res.Tasks[0].Priority)
}

func TestRemap_KeepsGivenStatusAndPriority(t *testing.T) {
	res, err := Remap([]Draft{{Title: "x", Status: "In_Progress", Priority: "HIGH"}}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, res.Tasks[0].Status)
	assert.Equal(t, PriorityHigh, res.Tasks[0].Priority)
}

func TestRemap_RejectsDuplicateLocalIDs(t *testing.T) {
	_, err := Remap([]Draft{{LocalID: 1, Title: "a"}, {LocalID: 1, Title: "b"}}, nil, nil)
	assert.Error(t, err)
}
