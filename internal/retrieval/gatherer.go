package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

// Format selects how sections are rendered.
type Format string

const (
	FormatHuman Format = "human"
	FormatAI    Format = "ai"
)

// TaskReader is the slice of the persistence contract the gatherer needs.
type TaskReader interface {
	GetTask(ctx context.Context, scope string, number int) (*task.Task, error)
}

// GatherRequest names what to put into a context string.
type GatherRequest struct {
	Scope              string   `json:"scope"`
	TaskIDs            []string `json:"taskIds,omitempty"`
	FilePaths          []string `json:"files,omitempty"`
	CustomContext      string   `json:"customContext,omitempty"`
	IncludeProjectTree bool     `json:"includeProjectTree,omitempty"`
	Format             Format   `json:"format,omitempty"`
}

// TaskTokens is the token share of one task section.
type TaskTokens struct {
	ID     string `json:"id"`
	Tokens int    `json:"tokens"`
}

// FileTokens is the token share of one file section.
type FileTokens struct {
	Path   string  `json:"path"`
	Tokens int     `json:"tokens"`
	SizeKB float64 `json:"sizeKB"`
}

// Breakdown attributes the context's tokens to its sections.
type Breakdown struct {
	CustomContext int          `json:"customContext"`
	Tasks         []TaskTokens `json:"tasks"`
	Files         []FileTokens `json:"files"`
	ProjectTree   int          `json:"projectTree"`
	Total         int          `json:"total"`
}

// Gathered is the assembled context.
type Gathered struct {
	Context   string    `json:"context"`
	Breakdown Breakdown `json:"breakdown"`
	Skipped   []string  `json:"skipped,omitempty"`
}

// Gatherer assembles context strings. Files are read through an afero.Fs rooted
// at the project directory.
type Gatherer struct {
	tasks        TaskReader
	fs           afero.Fs
	root         string
	logger       *slog.Logger
	maxFileBytes int64
	treeDepth    int
}

// GathererConfig bounds what the gatherer reads.
type GathererConfig struct {
	Root         string
	MaxFileBytes int64
	TreeDepth    int
}

// Defaults for GathererConfig.
const (
	DefaultMaxFileBytes = 64 * 1024
	DefaultTreeDepth    = 3
)

// NewGatherer returns a Gatherer. A nil fs means the OS file system.
func NewGatherer(tasks TaskReader, fs afero.Fs, cfg GathererConfig, logger *slog.Logger) *Gatherer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	if cfg.TreeDepth <= 0 {
		cfg.TreeDepth = DefaultTreeDepth
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	return &Gatherer{
		tasks:        tasks,
		fs:           fs,
		root:         cfg.Root,
		logger:       logger,
		maxFileBytes: cfg.MaxFileBytes,
		treeDepth:    cfg.TreeDepth,
	}
}

// Gather builds the context for req. It contains one delimited section per
// non-empty input; tasks and files that cannot be read are skipped with a
// warning. Section token counts add up to Breakdown.Total.
func (g *Gatherer) Gather(ctx context.Context, req GatherRequest) (Gathered, error) {
	if req.Format == "" {
		req.Format = FormatHuman
	}
	if req.Scope == "" {
		req.Scope = task.DefaultScope
	}

	var out Gathered
	var sb strings.Builder
	add := func(section string) int {
		sb.WriteString(section)
		return llm.EstimateTokens(section)
	}

	if custom := strings.TrimSpace(req.CustomContext); custom != "" {
		out.Breakdown.CustomContext = add(renderSection(req.Format, "Additional Context", "custom", custom))
	}

	for _, id := range req.TaskIDs {
		if err := ctx.Err(); err != nil {
			return Gathered{}, err
		}
		body, ok := g.taskSection(ctx, req.Scope, id)
		if !ok {
			out.Skipped = append(out.Skipped, "task:"+id)
			continue
		}
		tokens := add(renderSection(req.Format, "Task "+id, "task", body))
		out.Breakdown.Tasks = append(out.Breakdown.Tasks, TaskTokens{ID: id, Tokens: tokens})
	}

	for _, p := range req.FilePaths {
		body, size, ok := g.fileSection(p)
		if !ok {
			out.Skipped = append(out.Skipped, "file:"+p)
			continue
		}
		tokens := add(renderSection(req.Format, p, "file", body))
		out.Breakdown.Files = append(out.Breakdown.Files, FileTokens{
			Path:   p,
			Tokens: tokens,
			SizeKB: float64(size) / 1024,
		})
	}

	if req.IncludeProjectTree {
		if tree := g.projectTree(); tree != "" {
			out.Breakdown.ProjectTree = add(renderSection(req.Format, "Project Structure", "tree", tree))
		}
	}

	out.Context = sb.String()
	out.Breakdown.Total = out.Breakdown.CustomContext + out.Breakdown.ProjectTree
	for _, t := range out.Breakdown.Tasks {
		out.Breakdown.Total += t.Tokens
	}
	for _, f := range out.Breakdown.Files {
		out.Breakdown.Total += f.Tokens
	}
	return out, nil
}

func renderSection(format Format, title, kind, body string) string {
	body = strings.TrimRight(body, "\n")
	if format == FormatAI {
		return fmt.Sprintf("<context type=%q name=%q>\n%s\n</context>\n\n", kind, title, body)
	}
	return fmt.Sprintf("## %s\n%s\n\n", title, body)
}

func (g *Gatherer) taskSection(ctx context.Context, scope, id string) (string, bool) {
	ref, err := task.ParseRef(id)
	if err != nil {
		g.logger.Warn("skipping invalid task id", "id", id, "error", err)
		return "", false
	}
	if g.tasks == nil {
		return "", false
	}
	t, err := g.tasks.GetTask(ctx, scope, ref.Task)
	if err != nil {
		g.logger.Warn("skipping task that could not be loaded", "id", id, "error", err)
		return "", false
	}
	if t == nil {
		g.logger.Warn("skipping missing task", "scope", scope, "id", id)
		return "", false
	}

	if ref.IsSubtask() {
		s, ok := t.Subtask(ref.Subtask)
		if !ok {
			g.logger.Warn("skipping missing subtask", "scope", scope, "id", id)
			return "", false
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Title: %s\nParent: %d. %s\nStatus: %s\n", s.Title, t.Number, t.Title, s.Status)
		writeField(&b, "Description", s.Description)
		writeField(&b, "Details", s.Details.Implementation)
		return b.String(), true
	}
	return FormatTask(t), true
}

// FormatTask renders a task as plain text for prompts.
func FormatTask(t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nStatus: %s\nPriority: %s\n", t.Title, t.Status, t.Priority)
	if len(t.Dependencies) > 0 {
		deps := make([]string, len(t.Dependencies))
		for i, d := range t.Dependencies {
			deps[i] = fmt.Sprint(d)
		}
		fmt.Fprintf(&b, "Dependencies: %s\n", strings.Join(deps, ", "))
	}
	writeField(&b, "Description", t.Description)
	writeField(&b, "Details", t.Details.Implementation)
	writeField(&b, "Test Strategy", t.Details.TestStrategy)
	if len(t.Subtasks) > 0 {
		b.WriteString("Subtasks:\n")
		for _, s := range t.Subtasks {
			fmt.Fprintf(&b, "  %d.%d [%s] %s\n", t.Number, s.Number, s.Status, s.Title)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fmt.Fprintf(b, "%s: %s\n", name, v)
	}
}

func (g *Gatherer) resolve(p string) (string, bool) {
	full := p
	if !filepath.IsAbs(p) {
		full = filepath.Join(g.root, p)
	}
	rel, err := filepath.Rel(g.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func (g *Gatherer) fileSection(p string) (string, int64, bool) {
	full, ok := g.resolve(p)
	if !ok {
		g.logger.Warn("skipping file outside the project root", "path", p)
		return "", 0, false
	}
	info, err := g.fs.Stat(full)
	if err != nil || info.IsDir() {
		g.logger.Warn("skipping unreadable file", "path", p, "error", err)
		return "", 0, false
	}
	data, err := afero.ReadFile(g.fs, full)
	if err != nil {
		g.logger.Warn("skipping unreadable file", "path", p, "error", err)
		return "", 0, false
	}

	body := string(data)
	if int64(len(data)) > g.maxFileBytes {
		cut := int(g.maxFileBytes)
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		body = string(data[:cut]) + "\n...[truncated]"
	}
	return "```\n" + strings.TrimRight(body, "\n") + "\n```", info.Size(), true
}

// projectTree lists the project up to treeDepth levels, skipping hidden
// entries, node_modules and vendor.
func (g *Gatherer) projectTree() string {
	var sb strings.Builder
	_ = afero.Walk(g.fs, g.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(g.root, path)
		if rel == "." {
			return nil
		}

		name := info.Name()
		if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if depth > g.treeDepth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		indicator := ""
		if info.IsDir() {
			indicator = "/"
		}
		fmt.Fprintf(&sb, "%s%s%s\n", strings.Repeat("  ", depth-1), name, indicator)
		return nil
	})
	return sb.String()
}
