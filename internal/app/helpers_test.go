package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/memory"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/task"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeGen answers generation calls from scripted functions and records requests.
type fakeGen struct {
	mu      sync.Mutex
	object  func(n int, req llm.ObjectRequest) (string, error)
	text    func(n int, req llm.Request) (string, error)
	objects []llm.ObjectRequest
	texts   []llm.Request
}

func (f *fakeGen) telemetry(role llm.Role, cmd string) llm.Telemetry {
	return llm.Telemetry{
		Command:      cmd,
		Role:         role,
		Provider:     llm.ProviderOpenAI,
		Model:        "test-model",
		InputTokens:  100,
		OutputTokens: 20,
		TotalCostUSD: 0.001,
	}
}

func (f *fakeGen) GenerateObject(_ context.Context, req llm.ObjectRequest) (llm.Result, error) {
	f.mu.Lock()
	n := len(f.objects)
	f.objects = append(f.objects, req)
	f.mu.Unlock()
	if f.object == nil {
		return llm.Result{}, fmt.Errorf("unexpected object generation %q", req.Command)
	}
	out, err := f.object(n, req)
	if err != nil {
		return llm.Result{}, err
	}
	return llm.Result{Kind: llm.KindText, Text: out, Telemetry: f.telemetry(req.Role, req.Command)}, nil
}

func (f *fakeGen) GenerateText(_ context.Context, req llm.Request) (llm.Result, error) {
	f.mu.Lock()
	n := len(f.texts)
	f.texts = append(f.texts, req)
	f.mu.Unlock()
	if f.text == nil {
		return llm.Result{}, fmt.Errorf("unexpected text generation %q", req.Command)
	}
	out, err := f.text(n, req)
	if err != nil {
		return llm.Result{}, err
	}
	return llm.Result{Kind: llm.KindText, Text: out, Telemetry: f.telemetry(req.Role, req.Command)}, nil
}

// objectReply always returns body.
func objectReply(body string) func(int, llm.ObjectRequest) (string, error) {
	return func(int, llm.ObjectRequest) (string, error) { return body, nil }
}

type testEnv struct {
	ctx   *Context
	store *memory.SQLiteStore
	gen   *fakeGen
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := memory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gen := &fakeGen{}
	c := NewContext(Deps{
		Repo:    store,
		Reports: store,
		Gen:     gen,
		Prompts: prompts.NewResolver(afero.NewMemMapFs(), "", nil),
		Now:     func() time.Time { return testNow },
	})
	return &testEnv{ctx: c, store: store, gen: gen}
}

func (e *testEnv) seed(t *testing.T, scope string, tasks ...task.Task) {
	t.Helper()
	for _, tk := range tasks {
		_, err := e.store.CreateTask(context.Background(), scope, tk)
		require.NoError(t, err)
	}
}

func (e *testEnv) get(t *testing.T, scope string, number int) *task.Task {
	t.Helper()
	tk, err := e.store.GetTask(context.Background(), scope, number)
	require.NoError(t, err)
	require.NotNil(t, tk, "task %d", number)
	return tk
}
