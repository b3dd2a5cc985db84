package tui

import (
	"fmt"
	"strings"

	"github.com/nixlim/hometop/internal/display"
	"github.com/nixlim/hometop/internal/stats"
)

func (m Model) renderUsers() string {
	ds := m.currentStats()
	us := ds.Users

	sections := []string{
		m.renderUserCards(us),
		m.renderTopUsers(ds),
		renderHourlyActivity(us.HourlyActivity),
		renderDevicePreference(us.DevicePreference),
	}
	return strings.Join(sections, "\n\n")
}

func (m Model) renderUserCards(us stats.UserStats) string {
	mostActive := statCard("Most active user", "0 times", "No data")
	if len(us.MostActive) > 0 {
		top := us.MostActive[0]
		mostActive = statCard("Most active user",
			display.Count(top.Activity)+" times",
			"ID: "+display.TruncateID(top.UserID, display.CardIDLen))
	}

	mostDevices := statCard("Most devices used", "0 devices", "No data")
	if len(us.MostDevices) > 0 {
		top := us.MostDevices[0]
		mostDevices = statCard("Most devices used",
			display.Count(top.DeviceCount)+" devices",
			"ID: "+display.TruncateID(top.UserID, display.CardIDLen))
	}

	cards := []string{
		mostActive,
		mostDevices,
		statCard("Avg activity", display.Average(us.AvgActivity)+" times", "per user"),
		statCard("Peak hour", us.PeakHour, "busiest hour of day"),
	}
	return renderCards(cards, m.contentWidth())
}

func statCard(title, value, desc string) string {
	return cardStyle.Width(cardWidth).Render(
		dimStyle.Render(title) + "\n" +
			bigValueStyle.Render(value) + "\n" +
			dimStyle.Render(desc))
}

func (m Model) renderTopUsers(ds stats.DashboardStats) string {
	users := m.topUsers(ds)
	title := panelTitleStyle.Render(fmt.Sprintf("Top %d users by activity", len(users)))
	lines := []string{title}

	if len(users) == 0 {
		lines = append(lines, dimStyle.Render("  No user data"))
		return strings.Join(lines, "\n")
	}

	maxCount := users[0].Activity
	for i, u := range users {
		label := fmt.Sprintf("%-5s", display.Prefix(u.UserID, display.ChartUserLen))
		bar := renderBar(u.Activity, maxCount, barWidth, speakerStyle)
		line := fmt.Sprintf("  %s %s %s", label, bar, display.Count(u.Activity))
		if i == m.userCursor {
			line = selectedStyle.Render(fmt.Sprintf("> %s", label)) + " " + bar + " " + display.Count(u.Activity)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderHourlyActivity(hist []stats.HourCount) string {
	lines := []string{panelTitleStyle.Render("Activity by hour")}

	maxCount := 0
	for _, h := range hist {
		maxCount = max(maxCount, h.Count)
	}
	for _, h := range hist {
		lines = append(lines, fmt.Sprintf("  %5s %s %s",
			h.Hour, renderBar(h.Count, maxCount, barWidth, lightStyle), display.Count(h.Count)))
	}
	return strings.Join(lines, "\n")
}

func renderDevicePreference(prefs []stats.NameValue) string {
	lines := []string{panelTitleStyle.Render("Device type share")}
	if len(prefs) == 0 {
		lines = append(lines, dimStyle.Render("  No device data"))
		return strings.Join(lines, "\n")
	}

	total := 0
	for _, p := range prefs {
		total += p.Value
	}
	for _, p := range prefs {
		ratio := float64(p.Value) / float64(total)
		lines = append(lines, fmt.Sprintf("  %-14s %s %4s  %s",
			display.Clip(p.Name, 14), renderProgressBar(ratio, barWidth),
			display.Percent(p.Value, total), dimStyle.Render(display.Count(p.Value))))
	}
	return strings.Join(lines, "\n")
}
