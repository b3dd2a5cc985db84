package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	minWidth  = 40
	minHeight = 10

	headerHeight = 1
	tabBarHeight = 1
	footerHeight = 1

	cardWidth = 28
	barWidth  = 24
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	tabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("245"))

	activeTabStyle = tabStyle.
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	onStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82"))

	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	lightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	otherStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213"))

	errorBannerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("160"))

	bigValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("69"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	detailOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("69")).
				Padding(1, 2)
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func (m Model) contentWidth() int {
	w := m.width
	if w < minWidth {
		w = minWidth
	}
	return w
}

// renderFrame wraps a tab body with the header, tab bar, banners and
// footer, scrolling the body to m.scrollPos.
func (m Model) renderFrame(body string) string {
	width := m.contentWidth()

	top := []string{m.renderHeader(width), m.renderTabBar(width)}
	top = append(top, m.renderBanners(width)...)

	height := m.height
	if height < minHeight {
		height = minHeight
	}
	visibleH := height - len(top) - footerHeight
	if visibleH < 1 {
		visibleH = 1
	}

	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	start := m.scrollPos
	if start > len(lines)-visibleH {
		start = len(lines) - visibleH
	}
	if start < 0 {
		start = 0
	}
	end := start + visibleH
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	for _, l := range top {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	for _, l := range lines[start:end] {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	for i := end - start; i < visibleH; i++ {
		sb.WriteByte('\n')
	}
	sb.WriteString(statusBarStyle.Render(m.footerHelp()))
	return sb.String()
}

func (m Model) renderHeader(width int) string {
	title := " hometop"
	label := " Smart Device Analytics"
	if m.queries != nil {
		if snap := m.queries.Snapshot(); snap.Result.HasRows() {
			label += " [query result]"
		}
	}

	status := ""
	switch {
	case m.fetching:
		status = m.spinner.View() + " Loading logs "
	case m.querying:
		status = m.spinner.View() + " Querying "
	}

	padding := width - lipgloss.Width(title) - lipgloss.Width(label) - lipgloss.Width(status)
	if padding < 0 {
		padding = 0
	}
	return headerStyle.Width(width).Render(title + label + strings.Repeat(" ", padding) + status)
}

func (m Model) renderTabBar(width int) string {
	var tabs []string
	for i, name := range viewNames {
		label := string(rune('1'+i)) + " " + name
		if ViewState(i) == m.view {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if lipgloss.Width(bar) > width {
		return stripAnsi(bar)[:width]
	}
	return bar
}

// renderBanners returns the error lines shown above the body. The fetch
// error appears on every tab; the query error only on the Query tab.
func (m Model) renderBanners(width int) []string {
	var out []string
	if m.logs != nil {
		if err := m.logs.Snapshot().Err; err != nil {
			out = append(out, errorBannerStyle.Width(width).Render(" Failed to load logs: "+err.Error()))
		}
	}
	if m.view == ViewQuery && m.queries != nil {
		if err := m.queries.Snapshot().Err; err != nil {
			out = append(out, errorBannerStyle.Width(width).Render(" Query failed: "+err.Error()))
		}
	}
	return out
}

func (m Model) footerHelp() string {
	switch {
	case m.detailOverlay:
		return " Esc/Enter:Close  ↑/↓:Scroll"
	case m.input.Focused():
		return " Enter:Submit  Esc:Done typing  Ctrl+C:Quit"
	case m.view == ViewUsers:
		return " ↑/↓:Select user  Enter:Detail  Tab:Next tab  /:Ask  q:Quit"
	case m.view == ViewQuery:
		return " Enter or /:Type a question  ↑/↓:Scroll  Tab:Next tab  q:Quit"
	default:
		return " 1-4:Tabs  Tab:Next tab  ↑/↓:Scroll  /:Ask  q:Quit"
	}
}

// renderCards lays out cards left to right, wrapping to fit width.
func renderCards(cards []string, width int) string {
	if len(cards) == 0 {
		return ""
	}
	perRow := width / (cardWidth + 2)
	if perRow < 1 {
		perRow = 1
	}
	var rows []string
	for i := 0; i < len(cards); i += perRow {
		end := min(i+perRow, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderBar renders a horizontal bar of value relative to maxValue.
func renderBar(value, maxValue, width int, style lipgloss.Style) string {
	ratio := 0.0
	if maxValue > 0 {
		ratio = float64(value) / float64(maxValue)
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	if value > 0 && filled == 0 {
		filled = 1
	}
	return style.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// renderProgressBar renders a 0-1 ratio, colored by level.
func renderProgressBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if ratio >= 0.8 {
		return onStyle.Render(bar)
	}
	if ratio >= 0.5 {
		return lightStyle.Render(bar)
	}
	return offStyle.Render(bar)
}

func (m Model) overlayDetail(base string) string {
	overlayW := m.width * 60 / 100
	if overlayW < 40 {
		overlayW = 40
	}
	if overlayW > m.width-4 && m.width > 44 {
		overlayW = m.width - 4
	}
	overlayH := m.height * 60 / 100
	if overlayH < 10 {
		overlayH = 10
	}

	contentH := overlayH - 4
	if contentH < 3 {
		contentH = 3
	}

	wrapped := strings.Split(m.detailContent, "\n")

	startIdx := m.detailScrollPos
	if startIdx > len(wrapped)-contentH {
		startIdx = len(wrapped) - contentH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + contentH
	if endIdx > len(wrapped) {
		endIdx = len(wrapped)
	}

	body := strings.Join(wrapped[startIdx:endIdx], "\n")

	title := panelTitleStyle.Render(m.detailTitle)
	footer := dimStyle.Render("Esc/Enter: Close")
	if len(wrapped) > contentH {
		footer += dimStyle.Render("  Up/Down: Scroll")
	}

	dialog := detailOverlayStyle.
		Width(overlayW - 2).
		Render(title + "\n\n" + body + "\n\n" + footer)

	return placeOverlay(dialog, base)
}

func placeOverlay(fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}
