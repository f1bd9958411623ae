package ui

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

const (
	titleWidth    = 48
	maxPanelWidth = 100
)

var titleCaser = cases.Title(language.English)

// StatusLabel renders a status as a colored, title-cased label.
func StatusLabel(s task.TaskStatus) string {
	return statusStyle(string(s)).Render(titleCaser.String(string(s)))
}

func joinInts(ns []int) string {
	if len(ns) == 0 {
		return "-"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// RenderTasks lists tasks as a table.
func RenderTasks(tasks []task.Task) string {
	if len(tasks) == 0 {
		return StyleSubtle.Render("No tasks.") + "\n"
	}
	t := &Table{Headers: []string{"ID", "Title", "Status", "Priority", "Deps", "Subtasks"}}
	for _, tk := range tasks {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(tk.Number),
			Truncate(tk.Title, titleWidth),
			StatusLabel(tk.Status),
			string(tk.Priority),
			joinInts(tk.Dependencies),
			strconv.Itoa(len(tk.Subtasks)),
		})
	}
	return t.Render()
}

// RenderSubtasks lists the subtasks of parent with dotted ids.
func RenderSubtasks(parent int, subtasks []task.Subtask) string {
	if len(subtasks) == 0 {
		return StyleSubtle.Render("No subtasks.") + "\n"
	}
	t := &Table{Headers: []string{"ID", "Title", "Status"}}
	for _, s := range subtasks {
		ref := task.Ref{Task: parent, Subtask: s.Number}
		t.Rows = append(t.Rows, []string{ref.String(), Truncate(s.Title, titleWidth), StatusLabel(s.Status)})
	}
	return t.Render()
}

// RenderTask shows one task in a panel.
func RenderTask(t *task.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s  %s\n", StatusLabel(t.Status), StyleSubtle.Render("priority"), t.Priority)
	if t.Description != "" {
		sb.WriteString("\n" + WrapText(t.Description, 72) + "\n")
	}
	if t.Details.Implementation != "" {
		sb.WriteString("\n" + StyleSectionTitle.Render("Details") + "\n" + WrapText(t.Details.Implementation, 72) + "\n")
	}
	if t.Details.TestStrategy != "" {
		sb.WriteString("\n" + StyleSectionTitle.Render("Test strategy") + "\n" + WrapText(t.Details.TestStrategy, 72) + "\n")
	}
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(&sb, "\n%s %s\n", StyleSubtle.Render("depends on"), joinInts(t.Dependencies))
	}
	if len(t.Subtasks) > 0 {
		sb.WriteString("\n" + RenderSubtasks(t.Number, t.Subtasks))
	}
	return NewPanel(fmt.Sprintf("Task %d: %s", t.Number, t.Title), strings.TrimRight(sb.String(), "\n")).
		WithWidth(panelWidth()).
		Render()
}

// panelWidth fits a panel and its border to the terminal, capped at maxPanelWidth.
func panelWidth() int {
	return min(TerminalWidth(maxPanelWidth), maxPanelWidth) - 2
}

// RenderUsage is a one-line summary of model calls.
func RenderUsage(u llm.Usage) string {
	if u.Calls == 0 {
		return ""
	}
	return StyleSubtle.Render(fmt.Sprintf("%d model call(s), %d in / %d out tokens, $%.4f, %dms",
		u.Calls, u.InputTokens, u.OutputTokens, u.TotalCostUSD, u.DurationMS))
}

// RenderSynthesis summarizes tasks created from requirement text.
func RenderSynthesis(res *app.SynthesizeResult) string {
	var sb strings.Builder
	sb.WriteString(Icon("✓", StyleSuccess) + fmt.Sprintf(" Created %d task(s) in scope %s\n\n", res.TasksCreated, StylePrimary.Render(res.Scope)))
	sb.WriteString(RenderTasks(res.Tasks))
	if len(res.Dropped) > 0 {
		sb.WriteString("\n" + StyleWarning.Render("Dropped dependencies:") + "\n")
		for _, d := range res.Dropped {
			fmt.Fprintf(&sb, "  task %d -> %d (%s)\n", d.Task, d.Ref, d.Reason)
		}
	}
	if u := RenderUsage(res.Telemetry); u != "" {
		sb.WriteString("\n" + u + "\n")
	}
	return sb.String()
}

// RenderExpand summarizes a single expansion.
func RenderExpand(res *app.ExpandResult) string {
	var sb strings.Builder
	switch {
	case res.Skipped:
		sb.WriteString(Icon("•", StyleWarning) + fmt.Sprintf(" Task %d already has subtasks; nothing changed\n", res.TaskID))
	case res.Replaced > 0:
		sb.WriteString(Icon("✓", StyleSuccess) + fmt.Sprintf(" Replaced %d subtask(s) of task %d with %d new ones\n", res.Replaced, res.TaskID, res.SubtasksAdded))
	default:
		sb.WriteString(Icon("✓", StyleSuccess) + fmt.Sprintf(" Added %d subtask(s) to task %d\n", res.SubtasksAdded, res.TaskID))
	}
	if res.FromReport {
		sb.WriteString(StyleSubtle.Render("  sized from the complexity report") + "\n")
	}
	if len(res.Subtasks) > 0 {
		sb.WriteString("\n" + RenderSubtasks(res.TaskID, res.Subtasks))
	}
	if u := RenderUsage(res.Telemetry); u != "" {
		sb.WriteString("\n" + u + "\n")
	}
	return sb.String()
}

// RenderBatch summarizes a batch with one row per task.
func RenderBatch(title string, res *app.BatchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n\n", StyleTitle.Render(title), StyleSubtle.Render(fmt.Sprintf(
		"%d attempted, %d succeeded, %d skipped, %d failed", res.Attempted, res.Succeeded, res.Skipped, res.Failed)))

	t := &Table{Headers: []string{"Task", "Result", "Detail"}, MaxWidth: 72}
	for _, item := range res.Items {
		var result, detail string
		switch {
		case item.Error != nil:
			result = StyleError.Render("failed")
			detail = item.Error.Message
		case item.Skipped:
			result = StyleWarning.Render("skipped")
		default:
			result = StyleSuccess.Render("ok")
			if item.SubtasksAdded > 0 {
				detail = fmt.Sprintf("%d subtask(s)", item.SubtasksAdded)
			} else if item.Task != nil {
				detail = item.Task.Title
			}
		}
		t.Rows = append(t.Rows, []string{strconv.Itoa(item.TaskID), result, detail})
	}
	sb.WriteString(t.Render())
	if u := RenderUsage(res.Telemetry); u != "" {
		sb.WriteString("\n" + u + "\n")
	}
	return sb.String()
}

// RenderUpdate summarizes an update of a task or subtask.
func RenderUpdate(res *app.UpdateResult) string {
	var sb strings.Builder
	sb.WriteString(Icon("✓", StyleSuccess) + fmt.Sprintf(" Updated %s (%s)\n", res.TaskID, res.Mode))
	if res.Appended != "" {
		sb.WriteString("\n" + RenderInfoPanel("Added notes", WrapText(res.Appended, 72)) + "\n")
	} else if res.Task != nil {
		sb.WriteString("\n" + RenderTask(res.Task) + "\n")
	}
	if u := RenderUsage(res.Telemetry); u != "" {
		sb.WriteString("\n" + u + "\n")
	}
	return sb.String()
}

func renderEntries(entries []complexity.Entry) string {
	t := &Table{Headers: []string{"ID", "Title", "Score", "Subtasks"}}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(e.TaskID),
			Truncate(e.TaskTitle, titleWidth),
			scoreStyle(e.ComplexityScore).Render(strconv.Itoa(e.ComplexityScore)),
			strconv.Itoa(e.RecommendedSubtasks),
		})
	}
	return t.Render()
}

// RenderStats shows score buckets.
func RenderStats(s complexity.Stats) string {
	return fmt.Sprintf("%s %d   %s %d   %s %d   %s %.1f",
		StyleSuccess.Render("low"), s.Low,
		StyleWarning.Render("medium"), s.Medium,
		StyleError.Render("high"), s.High,
		StyleSubtle.Render("average"), s.Average)
}

// RenderAnalysis summarizes a complexity analysis run.
func RenderAnalysis(res *app.AnalyzeResult) string {
	var sb strings.Builder
	sb.WriteString(Icon("✓", StyleSuccess) + fmt.Sprintf(" Analyzed %d task(s) in scope %s\n", res.TasksAnalyzed, StylePrimary.Render(res.Scope)))
	if len(res.Defaulted) > 0 {
		sb.WriteString(StyleWarning.Render("  default scores used for tasks "+joinInts(res.Defaulted)) + "\n")
	}
	sb.WriteString("\n" + RenderStats(res.Stats) + "\n")
	if u := RenderUsage(res.Telemetry); u != "" {
		sb.WriteString("\n" + u + "\n")
	}
	return sb.String()
}

// RenderReport shows a stored complexity report with its recommendations.
func RenderReport(v *app.ReportView) string {
	var sb strings.Builder
	meta := v.Report.Meta
	fmt.Fprintf(&sb, "%s\n", StyleSubtle.Render(fmt.Sprintf("generated %s, threshold %d", meta.GeneratedAt.Format("2006-01-02 15:04"), v.Threshold)))
	sb.WriteString(RenderStats(v.Stats) + "\n\n")
	sb.WriteString(renderEntries(v.Report.ComplexityAnalysis))
	if len(v.Recommendations) > 0 {
		sb.WriteString("\n" + StyleSectionTitle.Render("Recommended for expansion") + "\n")
		for _, e := range v.Recommendations {
			fmt.Fprintf(&sb, "  %s task %d: %s\n", scoreStyle(e.ComplexityScore).Render(strconv.Itoa(e.ComplexityScore)), e.TaskID, e.TaskTitle)
			if e.ExpansionPrompt != "" {
				sb.WriteString(StyleSubtle.Render("    "+Truncate(e.ExpansionPrompt, 100)) + "\n")
			}
		}
	}
	return sb.String()
}

// RenderSearch lists ranked results.
func RenderSearch(res *app.SearchResult) string {
	if len(res.Results) == 0 {
		return StyleSubtle.Render(fmt.Sprintf("No matches for %q.", res.Query)) + "\n"
	}
	t := &Table{Headers: []string{"ID", "Title", "Status", "Score"}}
	for _, r := range res.Results {
		t.Rows = append(t.Rows, []string{
			r.Item.ID,
			Truncate(r.Item.Title, titleWidth),
			StatusLabel(task.TaskStatus(r.Item.Status)),
			fmt.Sprintf("%.3f", r.Score),
		})
	}
	return t.Render()
}

// RenderDependency summarizes an add or remove.
func RenderDependency(verb string, res *app.DependencyResult) string {
	if !res.Changed {
		return Icon("•", StyleWarning) + fmt.Sprintf(" Nothing to %s: task %d -> %d\n", verb, res.TaskID, res.DependsOn)
	}
	return Icon("✓", StyleSuccess) + fmt.Sprintf(" Task %d now depends on: %s\n", res.TaskID, joinInts(res.Dependencies))
}

// RenderValidation lists dependency issues.
func RenderValidation(r *app.ValidationReport) string {
	if r.Valid {
		return RenderSuccessPanel("Dependencies valid", fmt.Sprintf("%d task(s) checked", r.TasksChecked)) + "\n"
	}
	t := &Table{Headers: []string{"Task", "Depends on", "Issue"}}
	for _, is := range r.Issues {
		t.Rows = append(t.Rows, []string{strconv.Itoa(is.Task), strconv.Itoa(is.Dependency), string(is.Kind)})
	}
	title := fmt.Sprintf("%d issue(s) in %d task(s)", len(r.Issues), r.TasksChecked)
	return RenderWarningPanel(title, strings.TrimRight(t.Render(), "\n")) + "\n"
}

// RenderHistory lists audit entries, newest first.
func RenderHistory(entries []task.HistoryEntry) string {
	if len(entries) == 0 {
		return StyleSubtle.Render("No history.") + "\n"
	}
	t := &Table{Headers: []string{"When", "Operation", "Task", "Summary"}, MaxWidth: 100}
	for _, e := range entries {
		number := "-"
		if e.TaskNumber > 0 {
			number = strconv.Itoa(e.TaskNumber)
		}
		t.Rows = append(t.Rows, []string{e.CreatedAt.Format("2006-01-02 15:04"), e.Operation, number, e.Summary})
	}
	return t.Render()
}

// RenderError shows a failed operation.
func RenderError(info *app.ErrorInfo) string {
	var sb strings.Builder
	sb.WriteString(info.Message)
	if info.Excerpt != "" {
		sb.WriteString("\n\n" + StyleSubtle.Render(Truncate(info.Excerpt, 400)))
	}
	return RenderErrorPanel(titleCaser.String(strings.ReplaceAll(info.Kind, "_", " ")), sb.String())
}
