// Package display formats identifiers and values for the dashboard panels.
package display

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

const (
	// CardIDLen is how many characters of a device id a card shows.
	CardIDLen = 8
	// CellIDLen is how many characters of an id a result cell shows.
	CellIDLen = 10
	// ChartUserLen is how many characters of a user id a chart axis shows.
	ChartUserLen = 5
)

// TruncateID shortens id to n runes followed by "...". An empty id renders
// as "Unknown".
func TruncateID(id string, n int) string {
	if id == "" {
		return "Unknown"
	}
	if utf8.RuneCountInString(id) <= n {
		return id
	}
	return string([]rune(id)[:n]) + "..."
}

// Prefix returns the first n runes of s with no marker, the way chart axis
// labels clip user ids.
func Prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Clip truncates s to width runes, ending in "…" when it was cut.
func Clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string([]rune(s)[:width-1]) + "…"
}

// Cell renders one result-table value. device_id and user_id strings longer
// than CellIDLen are cut to CellIDLen runes plus "...". Objects and arrays
// render as JSON and nil as "null".
func Cell(column string, v any) string {
	if s, ok := v.(string); ok && (column == "device_id" || column == "user_id") {
		if utf8.RuneCountInString(s) > CellIDLen {
			return string([]rune(s)[:CellIDLen]) + "..."
		}
		return s
	}
	return Value(v)
}

// Value renders an arbitrary decoded JSON value as text.
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

// CapRows returns at most n leading rows.
func CapRows[T any](rows []T, n int) []T {
	if n < 0 || len(rows) <= n {
		return rows
	}
	return rows[:n]
}

// MoreRows returns the notice shown under a capped table, or "" when every
// row is shown.
func MoreRows(total, shown int) string {
	if total <= shown {
		return ""
	}
	return fmt.Sprintf("Showing %d of %s rows", shown, Count(total))
}

// Count formats n with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Percent formats part/total as a whole percentage. A zero total is 0%.
func Percent(part, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(float64(part)*100/float64(total))))
}

// Level formats an average brightness or volume.
func Level(v float64) string {
	return strconv.Itoa(int(math.Round(v))) + "%"
}

// Average formats a per-user average with one decimal.
func Average(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
