// Package crashlog records panics to disk so a failed pipeline run can be
// reported with the command and input that triggered it.
package crashlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	// DirName is the crash log directory inside the data dir.
	DirName = "crash_logs"
	// MaxLogs is how many crash logs are kept.
	MaxLogs = 10

	filePrefix = "crash_"
	fileSuffix = ".json"
	maxInput   = 500
)

// Entry is one recorded panic.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Command    string    `json:"command,omitempty"`
	Input      string    `json:"input,omitempty"`
	PanicValue string    `json:"panicValue"`
	StackTrace string    `json:"stackTrace"`
	GoVersion  string    `json:"goVersion"`
	OS         string    `json:"os"`
	Arch       string    `json:"arch"`
}

// Reporter collects the context of the running command and writes an Entry
// when a panic is recovered.
type Reporter struct {
	fs      afero.Fs
	version string
	stderr  io.Writer
	exit    func(int)
	now     func() time.Time

	mu      sync.RWMutex
	dir     string
	command string
	input   string
}

// New returns a Reporter writing under dir.
func New(fs afero.Fs, dir, version string) *Reporter {
	return &Reporter{
		fs:      fs,
		dir:     dir,
		version: version,
		stderr:  os.Stderr,
		exit:    os.Exit,
		now:     time.Now,
	}
}

// SetDir moves crash logs to dir. Used once the configured data dir is known.
func (r *Reporter) SetDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir = dir
}

// SetCommand records the command being executed.
func (r *Reporter) SetCommand(command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.command = command
}

// SetInput records the user input of the command, truncated.
func (r *Reporter) SetInput(input string) {
	input = strings.TrimSpace(input)
	if runes := []rune(input); len(runes) > maxInput {
		input = string(runes[:maxInput]) + "... [truncated]"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = input
}

// Recover must be deferred directly. It writes the crash log, tells the user
// where it is and exits with status 1.
func (r *Reporter) Recover() {
	v := recover()
	if v == nil {
		return
	}
	stack := debug.Stack()
	path, err := r.Write(v, stack)
	if err != nil {
		fmt.Fprintf(r.stderr, "\n[CRASH] failed to write crash log: %v\n", err)
		fmt.Fprintf(r.stderr, "[CRASH] panic: %v\n%s\n", v, stack)
	} else {
		fmt.Fprintf(r.stderr, "\ntaskforge encountered an unexpected error.\n")
		fmt.Fprintf(r.stderr, "A crash log has been saved to:\n  %s\n", path)
	}
	r.exit(1)
}

// Write stores a crash log for panicValue and prunes old logs. It returns the
// path of the new log.
func (r *Reporter) Write(panicValue any, stack []byte) (string, error) {
	r.mu.RLock()
	entry := Entry{
		Timestamp:  r.now().UTC(),
		Version:    r.version,
		Command:    r.command,
		Input:      r.input,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(stack),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
	dir := r.dir
	r.mu.RUnlock()

	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash log: %w", err)
	}
	name := filePrefix + entry.Timestamp.Format("20060102_150405.000") + fileSuffix
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(r.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}
	if err := r.prune(dir); err != nil {
		fmt.Fprintf(r.stderr, "[WARN] failed to clean old crash logs: %v\n", err)
	}
	return path, nil
}

// List returns crash log paths, oldest first.
func (r *Reporter) List() ([]string, error) {
	r.mu.RLock()
	dir := r.dir
	r.mu.RUnlock()
	return r.list(dir)
}

// Read loads one crash log.
func (r *Reporter) Read(path string) (*Entry, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse crash log %s: %w", path, err)
	}
	return &e, nil
}

func (r *Reporter) list(dir string) ([]string, error) {
	infos, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, info := range infos {
		name := info.Name()
		if !info.IsDir() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	// Names embed the timestamp.
	sort.Strings(paths)
	return paths, nil
}

func (r *Reporter) prune(dir string) error {
	paths, err := r.list(dir)
	if err != nil {
		return err
	}
	for len(paths) > MaxLogs {
		if err := r.fs.Remove(paths[0]); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", filepath.Base(paths[0]), err)
		}
		paths = paths[1:]
	}
	return nil
}
