package crashlog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReporter(t *testing.T) (*Reporter, *bytes.Buffer) {
	t.Helper()
	r := New(afero.NewMemMapFs(), "/data/crash_logs", "1.0.0-test")
	var stderr bytes.Buffer
	r.stderr = &stderr
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r, &stderr
}

func TestWrite_RecordsContext(t *testing.T) {
	r, _ := newTestReporter(t)
	r.SetCommand("taskforge parse-prd")
	r.SetInput("  docs/prd.md  ")

	path, err := r.Write("boom", []byte("goroutine 1 [running]"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "/data/crash_logs/crash_"))

	e, err := r.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-test", e.Version)
	assert.Equal(t, "taskforge parse-prd", e.Command)
	assert.Equal(t, "docs/prd.md", e.Input)
	assert.Equal(t, "boom", e.PanicValue)
	assert.Equal(t, "goroutine 1 [running]", e.StackTrace)
	assert.NotEmpty(t, e.GoVersion)
}

func TestSetInput_Truncates(t *testing.T) {
	r, _ := newTestReporter(t)
	r.SetInput(strings.Repeat("é", 800))

	r.mu.RLock()
	defer r.mu.RUnlock()
	assert.True(t, strings.HasSuffix(r.input, "... [truncated]"))
	assert.Equal(t, maxInput+len([]rune("... [truncated]")), len([]rune(r.input)))
}

func TestWrite_PrunesOldest(t *testing.T) {
	r, _ := newTestReporter(t)

	var first string
	for i := 0; i < MaxLogs+3; i++ {
		path, err := r.Write(i, nil)
		require.NoError(t, err)
		if i == 0 {
			first = path
		}
	}

	paths, err := r.List()
	require.NoError(t, err)
	assert.Len(t, paths, MaxLogs)
	assert.NotContains(t, paths, first)
}

func TestList_MissingDir(t *testing.T) {
	r, _ := newTestReporter(t)
	paths, err := r.List()
	assert.NoError(t, err)
	assert.Empty(t, paths)
}

func TestRecover_WritesAndExits(t *testing.T) {
	r, stderr := newTestReporter(t)
	code := -1
	r.exit = func(c int) { code = c }

	func() {
		defer r.Recover()
		panic("synthesis exploded")
	}()

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "crash log has been saved")
	paths, err := r.List()
	require.NoError(t, err)
	require.Len(t, paths, 1)
	e, err := r.Read(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "synthesis exploded", e.PanicValue)
}

func TestRecover_NoPanic(t *testing.T) {
	r, _ := newTestReporter(t)
	called := false
	r.exit = func(int) { called = true }

	func() {
		defer r.Recover()
	}()
	assert.False(t, called)
}
