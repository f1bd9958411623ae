package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table is a borderless result table with an underlined header row.
type Table struct {
	Headers []string
	Rows    [][]string
	// MaxWidth caps every column, in terminal cells. Zero means no cap.
	MaxWidth int
}

// ColumnWidths measures each column in terminal cells, ignoring ANSI styling.
func (t *Table) ColumnWidths() []int {
	widths := make([]int, len(t.Headers))
	measure := func(i int, s string) {
		if w := lipgloss.Width(s); w > widths[i] {
			widths[i] = w
		}
	}
	for i, h := range t.Headers {
		measure(i, h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			measure(i, row[i])
		}
	}
	if t.MaxWidth > 0 {
		for i, w := range widths {
			widths[i] = min(w, t.MaxWidth)
		}
	}
	return widths
}

// Render draws the table. A table without headers renders as "".
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.ColumnWidths()

	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, len(t.Headers))
		for i := range cells {
			if i < len(row) {
				cells[i] = Truncate(row[i], widths[i])
			}
		}
		rows = append(rows, cells)
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).PaddingLeft(1).PaddingRight(1)
	cellStyle := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)

	out := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(StyleSubtle).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		Headers(t.Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
	return strings.TrimRight(out, "\n") + "\n"
}

