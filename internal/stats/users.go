package stats

import (
	"sort"
	"time"

	"github.com/nixlim/hometop/internal/telemetry"
)

// ComputeUsers derives the Users tab statistics from logs. Hours are
// bucketed in loc.
func ComputeUsers(logs []telemetry.LogRecord, loc *time.Location) UserStats {
	us := UserStats{
		MostActive:       userActivity(logs),
		MostDevices:      userDevices(logs),
		HourlyActivity:   hourlyActivity(logs, loc),
		DevicePreference: devicePreference(logs),
		TotalRecords:     len(logs),
	}
	if n := len(us.MostActive); n > 0 {
		us.AvgActivity = float64(len(logs)) / float64(n)
	}
	us.PeakHour = PeakHour(logs, us.HourlyActivity)
	return us
}

func userActivity(logs []telemetry.LogRecord) []UserActivity {
	index := make(map[string]int)
	var out []UserActivity
	for _, r := range logs {
		if r.UserID == "" {
			continue
		}
		i, ok := index[r.UserID]
		if !ok {
			index[r.UserID] = len(out)
			out = append(out, UserActivity{UserID: r.UserID})
			i = len(out) - 1
		}
		out[i].Activity++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Activity > out[j].Activity
	})
	return out
}

func userDevices(logs []telemetry.LogRecord) []UserDevices {
	seen := make(map[string]map[string]struct{})
	var order []string
	for _, r := range logs {
		if r.UserID == "" {
			continue
		}
		set, ok := seen[r.UserID]
		if !ok {
			set = make(map[string]struct{})
			seen[r.UserID] = set
			order = append(order, r.UserID)
		}
		set[r.DeviceID] = struct{}{}
	}

	out := make([]UserDevices, 0, len(order))
	for _, u := range order {
		out = append(out, UserDevices{UserID: u, DeviceCount: len(seen[u])})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeviceCount > out[j].DeviceCount
	})
	return out
}

func hourlyActivity(logs []telemetry.LogRecord, loc *time.Location) []HourCount {
	out := make([]HourCount, HoursPerDay)
	for h := range out {
		out[h].Hour = HourLabel(h)
	}
	for _, r := range logs {
		if !r.HasTimestamp() || r.DeviceType == "" {
			continue
		}
		out[hourOf(r.Timestamp, loc)].Count++
	}
	return out
}

func devicePreference(logs []telemetry.LogRecord) []NameValue {
	index := make(map[telemetry.DeviceType]int)
	var out []NameValue
	for _, r := range logs {
		if !r.HasTimestamp() || r.DeviceType == "" {
			continue
		}
		i, ok := index[r.DeviceType]
		if !ok {
			index[r.DeviceType] = len(out)
			out = append(out, NameValue{Name: string(r.DeviceType)})
			i = len(out) - 1
		}
		out[i].Value++
	}
	return out
}

// PeakHour returns the label of the busiest hour in hist. An empty log
// sequence yields "00:00"; otherwise the first maximum wins, so an
// all-zero histogram yields "0:00".
func PeakHour(logs []telemetry.LogRecord, hist []HourCount) string {
	if len(logs) == 0 {
		return "00:00"
	}
	return HourLabel(PeakHourOf(hist))
}

// PeakHourOf returns the index of the first maximum in hist, or 0 when
// hist is empty.
func PeakHourOf(hist []HourCount) int {
	peak := 0
	for i := range hist {
		if hist[i].Count > hist[peak].Count {
			peak = i
		}
	}
	return peak
}

// UserDeviceBreakdown counts one user's records per device type, in
// encounter order. It rescans logs on every call.
func UserDeviceBreakdown(logs []telemetry.LogRecord, userID string) []NameValue {
	index := make(map[telemetry.DeviceType]int)
	var out []NameValue
	for _, r := range logs {
		if r.UserID != userID {
			continue
		}
		i, ok := index[r.DeviceType]
		if !ok {
			index[r.DeviceType] = len(out)
			out = append(out, NameValue{Name: string(r.DeviceType)})
			i = len(out) - 1
		}
		out[i].Value++
	}
	return out
}
