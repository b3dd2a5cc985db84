package stats

import (
	"time"

	"github.com/nixlim/hometop/internal/telemetry"
)

// HoursPerDay is the fixed size of every hourly histogram.
const HoursPerDay = 24

// DashboardStats holds every derived view of one log sequence.
type DashboardStats struct {
	Devices       []DeviceSnapshot
	Summary       DeviceSummary
	HourlyPower   []PowerBucket
	FunctionUsage map[telemetry.DeviceType][]FunctionCount
	Users         UserStats
}

// DeviceSnapshot is the latest known state of one device.
type DeviceSnapshot struct {
	Type      telemetry.DeviceType
	DeviceID  string
	UserID    string
	State     telemetry.State
	Timestamp time.Time
}

// Key returns the device identity used for aggregation.
func (d DeviceSnapshot) Key() string {
	return deviceKey(d.Type, d.DeviceID)
}

// TypeSummary holds counts for one device type. AvgLevel is average
// brightness for lights and average volume for speakers.
type TypeSummary struct {
	Total    int
	On       int
	AvgLevel float64
}

// DeviceSummary holds the per-type counts shown on the device cards.
type DeviceSummary struct {
	Lights   TypeSummary
	Speakers TypeSummary
	Other    TypeSummary
}

// PowerBucket counts records reporting power "on" within one hour of day.
type PowerBucket struct {
	Hour     int
	Time     string
	Lights   int
	Speakers int
	Other    int
}

// FunctionCount is the number of records invoking one function.
type FunctionCount struct {
	Name  string
	Count int
}

// UserActivity is the number of records attributed to one user.
type UserActivity struct {
	UserID   string
	Activity int
}

// UserDevices is the number of distinct devices one user touched.
type UserDevices struct {
	UserID      string
	DeviceCount int
}

// NameValue is a labelled count, used for pie-style shares.
type NameValue struct {
	Name  string
	Value int
}

// HourCount is one bucket of the hourly activity histogram.
type HourCount struct {
	Hour  string
	Count int
}

// UserStats holds the Users tab derivations.
type UserStats struct {
	MostActive       []UserActivity
	MostDevices      []UserDevices
	HourlyActivity   []HourCount
	DevicePreference []NameValue
	AvgActivity      float64
	PeakHour         string
	TotalRecords     int
}
