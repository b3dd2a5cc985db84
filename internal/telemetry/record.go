// Package telemetry defines the smart-device log record and its decoding
// from the JSON shapes served by the logs backend and the query service.
package telemetry

import (
	"time"
)

// DeviceType tags the kind of device that produced a record. The set is
// open; only Light and Speaker carry a typed state.
type DeviceType string

const (
	DeviceLight   DeviceType = "Light"
	DeviceSpeaker DeviceType = "Speaker"
)

const (
	PowerOn  = "on"
	PowerOff = "off"
)

// LogRecord is one observation of a device's state or of a function
// invoked on it. Records are values and are never modified after decoding.
type LogRecord struct {
	DeviceType DeviceType
	DeviceID   string
	UserID     string
	Timestamp  time.Time
	State      State
	Func       string
	Action     string
}

// HasTimestamp reports whether the record carried a parseable timestamp.
func (r LogRecord) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// PoweredOn reports whether the record's state has power "on".
func (r LogRecord) PoweredOn() bool {
	return r.State != nil && r.State.PowerState() == PowerOn
}

// State is the device-specific state carried by a record. The concrete
// type is one of LightState, SpeakerState or OtherState.
type State interface {
	PowerState() string
	isState()
}

type LightState struct {
	Power      string
	Brightness *int
	Color      string
	Mode       string
}

func (s LightState) PowerState() string { return s.Power }
func (LightState) isState()             {}

type SpeakerState struct {
	Power  string
	Volume *int
	Mode   string
}

func (s SpeakerState) PowerState() string { return s.Power }
func (SpeakerState) isState()             {}

// OtherState holds the state of a device type without a typed schema.
// Fields keeps every key except power.
type OtherState struct {
	Power  string
	Fields map[string]any
}

func (s OtherState) PowerState() string { return s.Power }
func (OtherState) isState()             {}

// StateFields flattens a state back into its wire shape.
func StateFields(s State) map[string]any {
	out := make(map[string]any)
	switch st := s.(type) {
	case LightState:
		out["power"] = st.Power
		if st.Brightness != nil {
			out["brightness"] = *st.Brightness
		}
		if st.Color != "" {
			out["color"] = st.Color
		}
		if st.Mode != "" {
			out["mode"] = st.Mode
		}
	case SpeakerState:
		out["power"] = st.Power
		if st.Volume != nil {
			out["volume"] = *st.Volume
		}
		if st.Mode != "" {
			out["mode"] = st.Mode
		}
	case OtherState:
		for k, v := range st.Fields {
			out[k] = v
		}
		if st.Power != "" {
			out["power"] = st.Power
		}
	}
	return out
}

// Mode returns the mode reported by a state, or "" when it has none.
func Mode(s State) string {
	switch st := s.(type) {
	case LightState:
		return st.Mode
	case SpeakerState:
		return st.Mode
	case OtherState:
		if m, ok := st.Fields["mode"].(string); ok {
			return m
		}
	}
	return ""
}

// IntPtr is a convenience for building states in code.
func IntPtr(v int) *int {
	return &v
}
