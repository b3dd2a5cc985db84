package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/hometop/internal/display"
	"github.com/nixlim/hometop/internal/stats"
	"github.com/nixlim/hometop/internal/telemetry"
)

func (m Model) renderDevices() string {
	ds := m.currentStats()

	if len(ds.Devices) == 0 {
		return m.emptyMessage()
	}

	sections := []string{
		m.renderSummaryCards(ds.Summary),
		renderHourlyPower(ds.HourlyPower),
	}
	sections = append(sections, renderFunctionUsage(ds.FunctionUsage)...)

	return strings.Join(sections, "\n\n")
}

func (m Model) renderSummaryCards(sum stats.DeviceSummary) string {
	cards := []string{
		summaryCard("Lights", sum.Lights, "Avg brightness", lightStyle),
		summaryCard("Speakers", sum.Speakers, "Avg volume", speakerStyle),
	}
	if sum.Other.Total > 0 {
		cards = append(cards, summaryCard("Other devices", sum.Other, "", otherStyle))
	}
	return renderCards(cards, m.contentWidth())
}

func summaryCard(title string, ts stats.TypeSummary, levelLabel string, style lipgloss.Style) string {
	lines := []string{
		style.Render("⏻ " + title),
		bigValueStyle.Render(fmt.Sprintf("%s/%s on", display.Count(ts.On), display.Count(ts.Total))),
	}
	if levelLabel != "" {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("%s: %.1f%%", levelLabel, ts.AvgLevel)))
	}
	return cardStyle.Width(cardWidth).Render(strings.Join(lines, "\n"))
}

func renderHourlyPower(hist []stats.PowerBucket) string {
	title := panelTitleStyle.Render("Hourly usage (power on)")

	maxCount := 0
	showOther := false
	for _, b := range hist {
		maxCount = max(maxCount, b.Lights, b.Speakers, b.Other)
		if b.Other > 0 {
			showOther = true
		}
	}

	legend := "  " + lightStyle.Render("■ Lights") + "  " + speakerStyle.Render("■ Speakers")
	if showOther {
		legend += "  " + otherStyle.Render("■ Other")
	}

	half := barWidth / 2
	lines := []string{title, legend}
	for _, b := range hist {
		line := fmt.Sprintf("  %5s %s %4d  %s %4d",
			b.Time,
			renderBar(b.Lights, maxCount, half, lightStyle), b.Lights,
			renderBar(b.Speakers, maxCount, half, speakerStyle), b.Speakers)
		if showOther {
			line += fmt.Sprintf("  %s %4d", renderBar(b.Other, maxCount, half, otherStyle), b.Other)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// renderFunctionUsage renders one chart per device type: Light, then
// Speaker, then any other types in name order.
func renderFunctionUsage(usage map[telemetry.DeviceType][]stats.FunctionCount) []string {
	order := []telemetry.DeviceType{telemetry.DeviceLight, telemetry.DeviceSpeaker}
	var others []string
	for dt := range usage {
		if dt != telemetry.DeviceLight && dt != telemetry.DeviceSpeaker {
			others = append(others, string(dt))
		}
	}
	sort.Strings(others)
	for _, o := range others {
		order = append(order, telemetry.DeviceType(o))
	}

	var out []string
	for _, dt := range order {
		name := string(dt)
		if name == "" {
			name = "Unknown"
		}
		out = append(out, renderFunctionChart(name+" functions", usage[dt], typeStyle(dt)))
	}
	return out
}

func renderFunctionChart(title string, funcs []stats.FunctionCount, style lipgloss.Style) string {
	lines := []string{panelTitleStyle.Render(title)}
	if len(funcs) == 0 {
		lines = append(lines, dimStyle.Render("  No function data"))
		return strings.Join(lines, "\n")
	}

	maxCount := funcs[0].Count
	for _, f := range funcs {
		lines = append(lines, fmt.Sprintf("  %-16s %s %s",
			display.Clip(f.Name, 16), renderBar(f.Count, maxCount, barWidth, style), display.Count(f.Count)))
	}
	return strings.Join(lines, "\n")
}
