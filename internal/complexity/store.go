package complexity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Store persists one report per scope. Get returns (nil, nil) when the scope has
// no report yet. Deleting a missing report succeeds.
type Store interface {
	Get(ctx context.Context, scope string) (*Report, error)
	Put(ctx context.Context, scope string, report *Report) error
	Delete(ctx context.Context, scope string) error
}

// MemoryStore keeps reports in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*Report)}
}

func (m *MemoryStore) Get(_ context.Context, scope string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[scope]
	if !ok {
		return nil, nil
	}
	return cloneReport(r), nil
}

func (m *MemoryStore) Put(_ context.Context, scope string, report *Report) error {
	if report == nil {
		return errors.New("nil report")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[scope] = cloneReport(report)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, scope)
	return nil
}

func cloneReport(r *Report) *Report {
	c := *r
	c.ComplexityAnalysis = slices.Clone(r.ComplexityAnalysis)
	return &c
}

// FileStore writes each scope's report to its own JSON file under dir.
// Writes go through a temp file and rename so a crash never leaves a torn report.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore returns a FileStore rooted at dir on fsys. The directory is
// created on first write.
func NewFileStore(fsys afero.Fs, dir string) *FileStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileStore{fs: fsys, dir: dir}
}

// Path returns the report file for scope. Bytes outside [A-Za-z0-9._-] are
// written as %XX, so distinct scopes never share a file.
func (f *FileStore) Path(scope string) string {
	var b strings.Builder
	for i := 0; i < len(scope); i++ {
		c := scope[i]
		if isNameByte(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return filepath.Join(f.dir, "complexity-report_"+b.String()+".json")
}

func isNameByte(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '.' || c == '_' || c == '-'
}

func (f *FileStore) Get(ctx context.Context, scope string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := f.Path(scope)
	data, err := afero.ReadFile(f.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	if r.Meta.Scope != scope {
		return nil, fmt.Errorf("report %s belongs to scope %q, not %q", path, r.Meta.Scope, scope)
	}
	return &r, nil
}

// Put writes the report, stamping scope into its metadata.
func (f *FileStore) Put(ctx context.Context, scope string, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if report == nil {
		return errors.New("nil report")
	}
	stamped := cloneReport(report)
	stamped.Meta.Scope = scope
	data, err := json.MarshalIndent(stamped, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := f.writeFile(f.Path(scope), data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Delete removes the scope's report. A missing report is not an error.
func (f *FileStore) Delete(ctx context.Context, scope string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.fs.Remove(f.Path(scope)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove report: %w", err)
	}
	return nil
}

func (f *FileStore) writeFile(path string, data []byte) error {
	tmp, err := afero.TempFile(f.fs, f.dir, ".report-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = f.fs.Remove(name)
		return err
	}
	if err := f.fs.Rename(name, path); err != nil {
		_ = f.fs.Remove(name)
		return err
	}
	return nil
}
