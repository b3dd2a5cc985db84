package tui

import (
	"strings"

	"github.com/nixlim/hometop/internal/display"
	"github.com/nixlim/hometop/internal/query"
)

const maxColumnWidth = 24

func (m Model) renderQuery() string {
	var sections []string

	sections = append(sections, inputBoxStyle.Width(m.contentWidth()-4).Render(m.input.View()))

	if m.queries == nil {
		sections = append(sections, dimStyle.Render("  Query service not configured"))
		return strings.Join(sections, "\n\n")
	}

	snap := m.queries.Snapshot()
	if m.querying {
		sections = append(sections, m.spinner.View()+" Running query...")
	}

	if snap.SQL != "" {
		sections = append(sections, panelTitleStyle.Render("Generated SQL")+"\n  "+snap.SQL)
	}

	if snap.Result != nil {
		sections = append(sections, m.renderResultTable(snap.Result))
	}

	return strings.Join(sections, "\n\n")
}

// renderResultTable renders at most the configured number of rows, with a
// notice when the result holds more.
func (m Model) renderResultTable(res *query.Result) string {
	title := panelTitleStyle.Render("Results")
	if res.TotalRows == 0 {
		return title + "\n" + dimStyle.Render("  No results found")
	}

	rows := display.CapRows(res.Rows, m.cfg.Display.QueryRowCap)

	cells := make([][]string, len(rows))
	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = min(len([]rune(c)), maxColumnWidth)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(res.Columns))
		for i, c := range res.Columns {
			v := display.Cell(c, row[c])
			cells[r][i] = v
			widths[i] = min(max(widths[i], len([]rune(v))), maxColumnWidth)
		}
	}

	lines := []string{title}

	header := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = pad(display.Clip(c, widths[i]), widths[i])
	}
	lines = append(lines, "  "+panelTitleStyle.Render(strings.Join(header, " │ ")))

	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	lines = append(lines, dimStyle.Render("  "+strings.Join(sep, "─┼─")))

	for _, row := range cells {
		out := make([]string, len(row))
		for i, v := range row {
			out[i] = pad(display.Clip(v, widths[i]), widths[i])
		}
		lines = append(lines, "  "+strings.Join(out, " │ "))
	}

	if notice := display.MoreRows(res.TotalRows, len(rows)); notice != "" {
		lines = append(lines, dimStyle.Render("  "+notice))
	}
	return strings.Join(lines, "\n")
}

func pad(s string, w int) string {
	n := len([]rune(s))
	if n >= w {
		return s
	}
	return s + strings.Repeat(" ", w-n)
}
