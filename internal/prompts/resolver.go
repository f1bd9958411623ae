// Package prompts resolves named prompt templates into system/user prompt pairs.
//
// Templates ship embedded as YAML manifests. A project can override any of them
// by dropping a file with the same name into its prompts directory
// (prompts.dir, default .taskforge/prompts).
package prompts

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Template names.
const (
	ParsePRD          = "parse-prd"
	ExpandTask        = "expand-task"
	AnalyzeComplexity = "analyze-complexity"
	UpdateTask        = "update-task"
	UpdateSubtask     = "update-subtask"
	ScopeAdjust       = "scope-adjust"
)

// DefaultVariant is used when a caller names no variant.
const DefaultVariant = "default"

//go:embed templates/*.yaml
var builtin embed.FS

// Pair is a resolved prompt.
type Pair struct {
	System string `json:"systemPrompt"`
	User   string `json:"userPrompt"`
}

// Params are the template inputs. Keys not declared by a manifest are an error;
// declared keys left out take the manifest's default.
type Params map[string]any

type variant struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type manifest struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Params      map[string]any     `yaml:"params"`
	Variants    map[string]variant `yaml:"variants"`

	source   string
	compiled map[string]compiledVariant
}

type compiledVariant struct {
	system *template.Template
	user   *template.Template
}

// Resolver loads and renders prompt templates. It is safe for concurrent use.
type Resolver struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*manifest
}

// NewResolver returns a Resolver. Overrides are looked up in dir on fs; an empty
// dir disables overrides. A nil fs means the OS file system.
func NewResolver(fsys afero.Fs, dir string, logger *slog.Logger) *Resolver {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{fs: fsys, dir: dir, logger: logger, cache: make(map[string]*manifest)}
}

// Names lists the built-in template names.
func Names() []string {
	entries, _ := fs.ReadDir(builtin, "templates")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

// Load renders template name in the given variant.
func (r *Resolver) Load(name string, params Params, variantName string) (Pair, error) {
	if variantName == "" {
		variantName = DefaultVariant
	}
	m, err := r.manifest(name)
	if err != nil {
		return Pair{}, err
	}

	cv, ok := m.compiled[variantName]
	if !ok {
		return Pair{}, fmt.Errorf("prompt %q has no variant %q (have %v)", name, variantName, slices.Sorted(maps.Keys(m.compiled)))
	}

	data := make(map[string]any, len(m.Params))
	maps.Copy(data, m.Params)
	for k, v := range params {
		if _, declared := m.Params[k]; !declared {
			return Pair{}, fmt.Errorf("prompt %q does not declare parameter %q", name, k)
		}
		data[k] = v
	}

	var pair Pair
	if pair.System, err = render(cv.system, data); err != nil {
		return Pair{}, fmt.Errorf("render %s/%s system prompt: %w", name, variantName, err)
	}
	if pair.User, err = render(cv.user, data); err != nil {
		return Pair{}, fmt.Errorf("render %s/%s user prompt: %w", name, variantName, err)
	}
	return pair, nil
}

func render(t *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (r *Resolver) manifest(name string) (*manifest, error) {
	r.mu.RLock()
	m, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	raw, source, err := r.read(name)
	if err != nil {
		return nil, err
	}
	m, err = parseManifest(raw, source)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = m
	r.mu.Unlock()
	return m, nil
}

// read returns the override file if the project has one, else the built-in.
func (r *Resolver) read(name string) ([]byte, string, error) {
	file := name + ".yaml"
	if strings.TrimSpace(r.dir) != "" {
		custom := filepath.Join(r.dir, file)
		data, err := afero.ReadFile(r.fs, custom)
		switch {
		case err == nil:
			r.logger.Info("using custom prompt", "name", name, "path", custom)
			return data, custom, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, "", fmt.Errorf("read custom prompt %s: %w", custom, err)
		}
	}

	data, err := builtin.ReadFile(path.Join("templates", file))
	if err != nil {
		return nil, "", fmt.Errorf("unknown prompt %q", name)
	}
	return data, "builtin:" + file, nil
}

func parseManifest(raw []byte, source string) (*manifest, error) {
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}
	if len(m.Variants) == 0 {
		return nil, fmt.Errorf("prompt %s declares no variants", source)
	}
	if _, ok := m.Variants[DefaultVariant]; !ok {
		return nil, fmt.Errorf("prompt %s has no %q variant", source, DefaultVariant)
	}
	if m.Params == nil {
		m.Params = map[string]any{}
	}

	m.source = source
	m.compiled = make(map[string]compiledVariant, len(m.Variants))
	for name, v := range m.Variants {
		if strings.TrimSpace(v.User) == "" {
			return nil, fmt.Errorf("prompt %s variant %q has an empty user prompt", source, name)
		}
		sys, err := template.New(name + ".system").Option("missingkey=error").Parse(v.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %s variant %q system: %w", source, name, err)
		}
		usr, err := template.New(name + ".user").Option("missingkey=error").Parse(v.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %s variant %q user: %w", source, name, err)
		}
		m.compiled[name] = compiledVariant{system: sys, user: usr}
	}
	return &m, nil
}

// Invalidate drops cached templates so the next Load re-reads them.
func (r *Resolver) Invalidate(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(names) == 0 {
		clear(r.cache)
		return
	}
	for _, n := range names {
		delete(r.cache, n)
	}
}

// Watch invalidates cached templates whenever a file in the override directory
// changes. It blocks until ctx is done. The directory must exist on the OS file
// system.
func (r *Resolver) Watch(ctx context.Context) error {
	if strings.TrimSpace(r.dir) == "" {
		return errors.New("no prompts directory configured")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := strings.TrimSuffix(filepath.Base(event.Name), ".yaml")
			r.logger.Debug("prompt override changed", "name", name, "op", event.Op.String())
			r.Invalidate(name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("prompt watch error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}
