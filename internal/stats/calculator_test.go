package stats

import (
	"math"
	"testing"
	"time"

	"github.com/nixlim/hometop/internal/telemetry"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func light(id, user, at, power string, brightness *int, fn string) telemetry.LogRecord {
	return telemetry.LogRecord{
		DeviceType: telemetry.DeviceLight,
		DeviceID:   id,
		UserID:     user,
		Timestamp:  ts(at),
		State:      telemetry.LightState{Power: power, Brightness: brightness},
		Func:       fn,
	}
}

func speaker(id, user, at, power string, volume *int, fn string) telemetry.LogRecord {
	return telemetry.LogRecord{
		DeviceType: telemetry.DeviceSpeaker,
		DeviceID:   id,
		UserID:     user,
		Timestamp:  ts(at),
		State:      telemetry.SpeakerState{Power: power, Volume: volume},
		Func:       fn,
	}
}

func TestStatsCalc_LatestSnapshotWins(t *testing.T) {
	logs := []telemetry.LogRecord{
		light("A", "u1", "2024-01-01T08:00:00Z", "on", telemetry.IntPtr(80), ""),
		light("A", "u1", "2024-01-01T09:00:00Z", "off", telemetry.IntPtr(20), ""),
	}

	stats := NewCalculator(time.UTC).Compute(logs)

	if len(stats.Devices) != 1 {
		t.Fatalf("expected 1 device snapshot, got %d", len(stats.Devices))
	}
	d := stats.Devices[0]
	if d.Key() != "Light#A" {
		t.Errorf("expected key Light#A, got %q", d.Key())
	}
	st := d.State.(telemetry.LightState)
	if st.Power != "off" || st.Brightness == nil || *st.Brightness != 20 {
		t.Errorf("expected later record (off, 20), got %+v", st)
	}
	if stats.Summary.Lights.AvgLevel != 20 {
		t.Errorf("expected avg brightness 20, got %f", stats.Summary.Lights.AvgLevel)
	}
	if stats.Summary.Lights.On != 0 {
		t.Errorf("expected 0 lights on, got %d", stats.Summary.Lights.On)
	}
}

func TestStatsCalc_AggregateOrderIndependentForDistinctTimes(t *testing.T) {
	a := light("A", "u1", "2024-01-01T08:00:00Z", "on", nil, "")
	b := light("A", "u1", "2024-01-01T10:00:00Z", "off", nil, "")
	c := speaker("S", "u2", "2024-01-01T09:00:00Z", "on", nil, "")

	forward := AggregateDevices([]telemetry.LogRecord{a, b, c})
	backward := AggregateDevices([]telemetry.LogRecord{c, b, a})

	get := func(snaps []DeviceSnapshot, key string) DeviceSnapshot {
		for _, s := range snaps {
			if s.Key() == key {
				return s
			}
		}
		t.Fatalf("missing snapshot %s", key)
		return DeviceSnapshot{}
	}
	for _, key := range []string{"Light#A", "Speaker#S"} {
		f, bk := get(forward, key), get(backward, key)
		if !f.Timestamp.Equal(bk.Timestamp) {
			t.Errorf("%s: expected same snapshot regardless of order, got %v vs %v", key, f.Timestamp, bk.Timestamp)
		}
	}
}

func TestStatsCalc_AggregateTieKeepsFirst(t *testing.T) {
	first := light("A", "u1", "2024-01-01T08:00:00Z", "on", nil, "")
	second := light("A", "u1", "2024-01-01T08:00:00Z", "off", nil, "")

	snaps := AggregateDevices([]telemetry.LogRecord{first, second})
	if got := snaps[0].State.PowerState(); got != "on" {
		t.Errorf("expected earlier-seen record on tie, got power %q", got)
	}
}

func TestStatsCalc_AggregateSameIDDifferentTypes(t *testing.T) {
	logs := []telemetry.LogRecord{
		light("X", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
		speaker("X", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
	}
	if got := len(AggregateDevices(logs)); got != 2 {
		t.Errorf("expected 2 snapshots for same id across types, got %d", got)
	}
}

func TestStatsCalc_SummaryZeroGuard(t *testing.T) {
	snaps := AggregateDevices([]telemetry.LogRecord{
		light("A", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
		speaker("S", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
	})
	sum := SummarizeDevices(snaps)
	if sum.Lights.AvgLevel != 0 || sum.Speakers.AvgLevel != 0 {
		t.Errorf("expected zero averages with no levels, got %f / %f", sum.Lights.AvgLevel, sum.Speakers.AvgLevel)
	}
	if math.IsNaN(sum.Lights.AvgLevel) {
		t.Error("average must not be NaN")
	}
	if sum.Lights.Total != 1 || sum.Lights.On != 1 || sum.Speakers.On != 1 {
		t.Errorf("unexpected counts: %+v", sum)
	}
}

func TestStatsCalc_SummarySkipsZeroLevel(t *testing.T) {
	snaps := AggregateDevices([]telemetry.LogRecord{
		light("L1", "u1", "2024-01-01T08:00:00Z", "on", telemetry.IntPtr(80), ""),
		light("L2", "u1", "2024-01-01T08:00:00Z", "on", telemetry.IntPtr(0), ""),
		speaker("S1", "u1", "2024-01-01T08:00:00Z", "on", telemetry.IntPtr(0), ""),
	})
	sum := SummarizeDevices(snaps)
	if sum.Lights.AvgLevel != 80 {
		t.Errorf("avg brightness: want 80, got %f", sum.Lights.AvgLevel)
	}
	if sum.Speakers.AvgLevel != 0 {
		t.Errorf("avg volume: want 0, got %f", sum.Speakers.AvgLevel)
	}
	if sum.Lights.Total != 2 || sum.Speakers.Total != 1 {
		t.Errorf("zero-level devices must still be counted, got %+v %+v", sum.Lights, sum.Speakers)
	}
}

func TestStatsCalc_SummaryOtherType(t *testing.T) {
	snaps := []DeviceSnapshot{
		{Type: "AirConditioner", DeviceID: "ac", State: telemetry.OtherState{Power: "on"}},
	}
	sum := SummarizeDevices(snaps)
	if sum.Other.Total != 1 || sum.Other.On != 1 {
		t.Errorf("expected other device counted, got %+v", sum.Other)
	}
}

func TestStatsCalc_HourlyPowerAlways24(t *testing.T) {
	for _, logs := range [][]telemetry.LogRecord{nil, {light("A", "u", "2024-01-01T23:10:00Z", "on", nil, "")}} {
		hist := HourlyPower(logs, time.UTC)
		if len(hist) != 24 {
			t.Fatalf("expected 24 buckets, got %d", len(hist))
		}
		for i, b := range hist {
			if b.Hour != i {
				t.Errorf("bucket %d has hour %d", i, b.Hour)
			}
		}
	}
}

func TestStatsCalc_HourlyPowerCounts(t *testing.T) {
	logs := []telemetry.LogRecord{
		light("A", "u1", "2024-01-01T08:05:00Z", "on", nil, ""),
		light("B", "u1", "2024-01-01T08:50:00Z", "off", nil, ""),
		speaker("S", "u1", "2024-01-01T08:30:00Z", "on", nil, ""),
		{DeviceType: "AirConditioner", DeviceID: "ac", Timestamp: ts("2024-01-01T08:00:00Z"), State: telemetry.OtherState{Power: "on"}},
		{DeviceType: telemetry.DeviceLight, DeviceID: "C", State: telemetry.LightState{Power: "on"}},
	}
	hist := HourlyPower(logs, time.UTC)
	b := hist[8]
	if b.Time != "8:00" {
		t.Errorf("expected label 8:00, got %q", b.Time)
	}
	if b.Lights != 1 || b.Speakers != 1 || b.Other != 1 {
		t.Errorf("expected 1/1/1 at 8:00, got %+v", b)
	}
	total := 0
	for _, h := range hist {
		total += h.Lights + h.Speakers + h.Other
	}
	if total != 3 {
		t.Errorf("expected untimestamped record skipped, total %d", total)
	}
}

func TestStatsCalc_HourlyPowerUsesLocation(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	logs := []telemetry.LogRecord{light("A", "u", "2024-01-01T01:00:00Z", "on", nil, "")}
	if got := HourlyPower(logs, kst)[10].Lights; got != 1 {
		t.Errorf("expected record bucketed at 10:00 KST, got %d", got)
	}
}

func TestStatsCalc_FunctionUsage(t *testing.T) {
	logs := []telemetry.LogRecord{
		light("A", "u", "2024-01-01T08:00:00Z", "on", nil, "turnOn"),
		light("A", "u", "2024-01-01T08:01:00Z", "on", nil, "setColor"),
		light("A", "u", "2024-01-01T08:02:00Z", "on", nil, "setColor"),
		light("A", "u", "2024-01-01T08:03:00Z", "on", nil, "setMode"),
		light("A", "u", "2024-01-01T08:04:00Z", "on", nil, ""),
		speaker("S", "u", "2024-01-01T08:00:00Z", "on", nil, "getWeather"),
	}
	usage := FunctionUsage(logs)

	lights := usage[telemetry.DeviceLight]
	want := []FunctionCount{{"setColor", 2}, {"turnOn", 1}, {"setMode", 1}}
	if len(lights) != len(want) {
		t.Fatalf("expected %d light functions, got %d", len(want), len(lights))
	}
	for i := range want {
		if lights[i] != want[i] {
			t.Errorf("lights[%d]: want %+v, got %+v", i, want[i], lights[i])
		}
	}

	sum := 0
	for _, f := range lights {
		sum += f.Count
	}
	if sum != 4 {
		t.Errorf("expected light function counts to sum to 4, got %d", sum)
	}
	if got := usage[telemetry.DeviceSpeaker]; len(got) != 1 || got[0].Count != 1 {
		t.Errorf("unexpected speaker usage %+v", got)
	}
}

func TestStatsCalc_Users(t *testing.T) {
	logs := []telemetry.LogRecord{
		light("A", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
		light("A", "u1", "2024-01-01T08:10:00Z", "on", nil, ""),
		light("B", "u1", "2024-01-01T09:00:00Z", "on", nil, ""),
		speaker("S", "u2", "2024-01-01T08:20:00Z", "on", nil, ""),
		{DeviceType: telemetry.DeviceLight, DeviceID: "Z", Timestamp: ts("2024-01-01T12:00:00Z"), State: telemetry.LightState{}},
	}
	us := ComputeUsers(logs, time.UTC)

	if len(us.MostActive) != 2 || us.MostActive[0].UserID != "u1" || us.MostActive[0].Activity != 3 {
		t.Errorf("unexpected MostActive %+v", us.MostActive)
	}
	if us.MostDevices[0].UserID != "u1" || us.MostDevices[0].DeviceCount != 2 {
		t.Errorf("unexpected MostDevices %+v", us.MostDevices)
	}
	if us.AvgActivity != 2.5 {
		t.Errorf("expected avg activity 5/2=2.5, got %f", us.AvgActivity)
	}
	if us.PeakHour != "8:00" {
		t.Errorf("expected peak 8:00, got %q", us.PeakHour)
	}
	if len(us.HourlyActivity) != 24 || us.HourlyActivity[8].Count != 3 || us.HourlyActivity[12].Count != 1 {
		t.Errorf("unexpected hourly activity %+v", us.HourlyActivity)
	}
	wantPref := []NameValue{{"Light", 4}, {"Speaker", 1}}
	for i, w := range wantPref {
		if us.DevicePreference[i] != w {
			t.Errorf("preference[%d]: want %+v, got %+v", i, w, us.DevicePreference[i])
		}
	}
}

func TestStatsCalc_DistinctDevicesIgnoresDuplicates(t *testing.T) {
	once := []telemetry.LogRecord{light("A", "u1", "2024-01-01T08:00:00Z", "on", nil, "")}
	twice := append(once, once[0])

	a := ComputeUsers(once, time.UTC).MostDevices[0].DeviceCount
	b := ComputeUsers(twice, time.UTC).MostDevices[0].DeviceCount
	if a != b || a != 1 {
		t.Errorf("expected duplicate pair to count once, got %d and %d", a, b)
	}
}

func TestStatsCalc_PeakHourEdges(t *testing.T) {
	if got := ComputeUsers(nil, time.UTC).PeakHour; got != "00:00" {
		t.Errorf("expected 00:00 for empty logs, got %q", got)
	}
	if got := ComputeUsers(nil, time.UTC).AvgActivity; got != 0 {
		t.Errorf("expected zero avg activity with no users, got %f", got)
	}

	noTime := []telemetry.LogRecord{{DeviceType: telemetry.DeviceLight, UserID: "u"}}
	if got := ComputeUsers(noTime, time.UTC).PeakHour; got != "0:00" {
		t.Errorf("expected 0:00 for all-zero histogram, got %q", got)
	}

	hist := make([]HourCount, 24)
	hist[3].Count = 5
	hist[7].Count = 5
	if got := PeakHourOf(hist); got != 3 {
		t.Errorf("expected first maximum 3, got %d", got)
	}
}

func TestStatsCalc_UserDeviceBreakdown(t *testing.T) {
	logs := []telemetry.LogRecord{
		speaker("S", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
		light("A", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
		light("B", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
		light("C", "u2", "2024-01-01T08:00:00Z", "on", nil, ""),
	}
	got := UserDeviceBreakdown(logs, "u1")
	want := []NameValue{{"Speaker", 1}, {"Light", 2}}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
	if got := UserDeviceBreakdown(logs, "nobody"); len(got) != 0 {
		t.Errorf("expected empty breakdown for unknown user, got %+v", got)
	}
}

func TestStatsCalc_Memoization(t *testing.T) {
	calc := NewCalculator(time.UTC)
	first := []telemetry.LogRecord{light("A", "u1", "2024-01-01T08:00:00Z", "on", nil, "")}
	second := []telemetry.LogRecord{
		light("A", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
		light("B", "u1", "2024-01-01T08:00:00Z", "on", nil, ""),
	}

	s1 := calc.ComputeFor("logs:1", first)
	if len(s1.Devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(s1.Devices))
	}
	// Same key returns the memoized value even with different input.
	if got := calc.ComputeFor("logs:1", second); len(got.Devices) != 1 {
		t.Errorf("expected memoized result for same key, got %d devices", len(got.Devices))
	}
	if got := calc.ComputeFor("logs:2", second); len(got.Devices) != 2 {
		t.Errorf("expected recompute for new key, got %d devices", len(got.Devices))
	}

	calc.Reset()
	if got := calc.ComputeFor("logs:1", second); len(got.Devices) != 2 {
		t.Errorf("expected recompute after reset, got %d devices", len(got.Devices))
	}
}
