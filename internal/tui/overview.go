package tui

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/hometop/internal/display"
	"github.com/nixlim/hometop/internal/stats"
	"github.com/nixlim/hometop/internal/telemetry"
)

func (m Model) renderOverview() string {
	ds := m.currentStats()

	if len(ds.Devices) == 0 {
		return m.emptyMessage()
	}

	title := panelTitleStyle.Render(fmt.Sprintf("Devices (%s)", display.Count(len(ds.Devices))))
	cards := make([]string, 0, len(ds.Devices))
	for _, d := range ds.Devices {
		cards = append(cards, renderDeviceCard(d))
	}
	return title + "\n" + renderCards(cards, m.contentWidth())
}

func (m Model) emptyMessage() string {
	if m.fetching {
		return dimStyle.Render("  Loading logs...")
	}
	return dimStyle.Render("  No device logs")
}

func renderDeviceCard(d stats.DeviceSnapshot) string {
	powered := d.State != nil && d.State.PowerState() == telemetry.PowerOn

	typeName := string(d.Type)
	if typeName == "" {
		typeName = "Unknown"
	}
	indicator := offStyle.Render("○")
	if powered {
		indicator = typeStyle(d.Type).Render("●")
	}
	power := offStyle.Render("OFF")
	if powered {
		power = onStyle.Render("ON")
	}

	lines := []string{
		panelTitleStyle.Render(display.Clip(typeName, cardWidth-6)) + " " + indicator,
		dimStyle.Render("# " + display.TruncateID(d.DeviceID, display.CardIDLen)),
		dimStyle.Render("@ " + display.TruncateID(d.UserID, display.CardIDLen)),
		cardRow("Power", power),
	}

	switch st := d.State.(type) {
	case telemetry.LightState:
		lines = append(lines,
			cardRow("Brightness", fmt.Sprintf("%d%%", levelOrZero(st.Brightness))),
			cardRow("Color", orDefault(st.Color, "Default")),
		)
	case telemetry.SpeakerState:
		lines = append(lines, cardRow("Volume", fmt.Sprintf("%d%%", levelOrZero(st.Volume))))
	case telemetry.OtherState:
		keys := make([]string, 0, len(st.Fields))
		for k := range st.Fields {
			if k != "mode" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, cardRow(capitalize(k), display.Value(st.Fields[k])))
		}
	}
	lines = append(lines, cardRow("Mode", capitalize(orDefault(telemetry.Mode(d.State), "Normal"))))

	return cardStyle.Width(cardWidth).Render(strings.Join(lines, "\n"))
}

func cardRow(label, value string) string {
	return dimStyle.Render(fmt.Sprintf("%-11s", label)) + " " + value
}

func typeStyle(t telemetry.DeviceType) lipgloss.Style {
	switch t {
	case telemetry.DeviceLight:
		return lightStyle
	case telemetry.DeviceSpeaker:
		return speakerStyle
	default:
		return otherStyle
	}
}

func levelOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
