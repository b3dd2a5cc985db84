package stats

import (
	"sort"
	"strconv"
	"time"

	"github.com/nixlim/hometop/internal/telemetry"
)

// HourLabel formats an hour of day the way the charts label it ("8:00").
func HourLabel(h int) string {
	return strconv.Itoa(h) + ":00"
}

// hourOf returns the hour of day of t in loc.
func hourOf(t time.Time, loc *time.Location) int {
	if loc == nil {
		return t.Hour()
	}
	return t.In(loc).Hour()
}

// HourlyPower counts, per hour of day in loc, the records whose state
// reports power "on". The result always has 24 entries in hour order.
// Records without a timestamp are skipped.
func HourlyPower(logs []telemetry.LogRecord, loc *time.Location) []PowerBucket {
	out := make([]PowerBucket, HoursPerDay)
	for h := range out {
		out[h] = PowerBucket{Hour: h, Time: HourLabel(h)}
	}

	for _, r := range logs {
		if !r.HasTimestamp() || !r.PoweredOn() {
			continue
		}
		b := &out[hourOf(r.Timestamp, loc)]
		switch r.State.(type) {
		case telemetry.LightState:
			b.Lights++
		case telemetry.SpeakerState:
			b.Speakers++
		case telemetry.OtherState:
			b.Other++
		}
	}
	return out
}

// FunctionUsage counts records with a function name, per device type.
// Each list is sorted by count descending; ties keep first-seen order.
func FunctionUsage(logs []telemetry.LogRecord) map[telemetry.DeviceType][]FunctionCount {
	type counter struct {
		index map[string]int
		list  []FunctionCount
	}
	byType := make(map[telemetry.DeviceType]*counter)

	for _, r := range logs {
		if r.Func == "" {
			continue
		}
		c, ok := byType[r.DeviceType]
		if !ok {
			c = &counter{index: make(map[string]int)}
			byType[r.DeviceType] = c
		}
		i, ok := c.index[r.Func]
		if !ok {
			c.index[r.Func] = len(c.list)
			c.list = append(c.list, FunctionCount{Name: r.Func})
			i = len(c.list) - 1
		}
		c.list[i].Count++
	}

	result := make(map[telemetry.DeviceType][]FunctionCount, len(byType))
	for dt, c := range byType {
		sort.SliceStable(c.list, func(i, j int) bool {
			return c.list[i].Count > c.list[j].Count
		})
		result[dt] = c.list
	}
	return result
}
