package stats

import (
	"github.com/nixlim/hometop/internal/telemetry"
)

func deviceKey(t telemetry.DeviceType, id string) string {
	return string(t) + "#" + id
}

// AggregateDevices reduces logs to one snapshot per (device type, device
// id) pair. A record replaces the stored snapshot only when its timestamp
// is strictly later, so on ties the earlier-seen record wins. Output is in
// first-insertion order.
func AggregateDevices(logs []telemetry.LogRecord) []DeviceSnapshot {
	index := make(map[string]int)
	var out []DeviceSnapshot

	for _, r := range logs {
		key := deviceKey(r.DeviceType, r.DeviceID)
		snap := DeviceSnapshot{
			Type:      r.DeviceType,
			DeviceID:  r.DeviceID,
			UserID:    r.UserID,
			State:     r.State,
			Timestamp: r.Timestamp,
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, snap)
			continue
		}
		if r.Timestamp.After(out[i].Timestamp) {
			out[i] = snap
		}
	}
	return out
}

// SummarizeDevices computes per-type totals, on counts and average levels
// from device snapshots. Averages only include devices reporting a
// non-zero level and are 0 when none do.
func SummarizeDevices(devices []DeviceSnapshot) DeviceSummary {
	var sum DeviceSummary
	var brightSum, brightN, volSum, volN int

	for _, d := range devices {
		on := d.State != nil && d.State.PowerState() == telemetry.PowerOn

		switch st := d.State.(type) {
		case telemetry.LightState:
			sum.Lights.Total++
			if on {
				sum.Lights.On++
			}
			if st.Brightness != nil && *st.Brightness != 0 {
				brightSum += *st.Brightness
				brightN++
			}
		case telemetry.SpeakerState:
			sum.Speakers.Total++
			if on {
				sum.Speakers.On++
			}
			if st.Volume != nil && *st.Volume != 0 {
				volSum += *st.Volume
				volN++
			}
		case telemetry.OtherState:
			sum.Other.Total++
			if on {
				sum.Other.On++
			}
		default:
			// Snapshots built outside the decoder may lack a state.
			sum.Other.Total++
		}
	}

	sum.Lights.AvgLevel = safeAvg(brightSum, brightN)
	sum.Speakers.AvgLevel = safeAvg(volSum, volN)
	return sum
}

func safeAvg(total, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}
