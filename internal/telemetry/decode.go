package telemetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// ErrMissingData is returned when a logs payload has no data array.
var ErrMissingData = errors.New("payload has no data array")

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp. Timestamps without a zone
// are read in loc, the way a browser reads them in local time.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Decoder turns JSON log payloads into LogRecords. It is safe for
// concurrent use.
type Decoder struct {
	loc     *time.Location
	parsers fastjson.ParserPool
}

// NewDecoder returns a Decoder that reads zone-less timestamps in loc.
// A nil loc means time.Local.
func NewDecoder(loc *time.Location) *Decoder {
	if loc == nil {
		loc = time.Local
	}
	return &Decoder{loc: loc}
}

// DecodeFeed decodes a logs endpoint body of the form {"data": [...]}.
// A bare top-level array is accepted too. Entries that are not objects
// are skipped.
func (d *Decoder) DecodeFeed(body []byte) ([]LogRecord, error) {
	p := d.parsers.Get()
	defer d.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parsing logs payload: %w", err)
	}

	arrVal := v
	if v.Type() == fastjson.TypeObject {
		arrVal = v.Get("data")
		if arrVal == nil || arrVal.Type() == fastjson.TypeNull {
			return nil, ErrMissingData
		}
	}
	arr, err := arrVal.Array()
	if err != nil {
		return nil, fmt.Errorf("logs data is not an array: %w", err)
	}

	records := make([]LogRecord, 0, len(arr))
	for _, item := range arr {
		rec, ok := d.Record(item)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Record decodes a single log object. ok is false when v is not an object.
func (d *Decoder) Record(v *fastjson.Value) (rec LogRecord, ok bool) {
	if v == nil || v.Type() != fastjson.TypeObject {
		return LogRecord{}, false
	}

	rec.DeviceType = DeviceType(stringField(v, "device_type"))
	rec.DeviceID = stringField(v, "device_id")
	rec.UserID = stringField(v, "user_id")
	rec.Action = stringField(v, "action")

	rec.Func = stringField(v, "func")
	if rec.Func == "" {
		rec.Func = stringField(v, "function")
	}

	if ts := stringField(v, "timestamp"); ts != "" {
		if t, ok := ParseTimestamp(ts, d.loc); ok {
			rec.Timestamp = t
		}
	}

	rec.State = d.state(rec.DeviceType, v.Get("state"))
	return rec, true
}

// state decodes the state field. SQL result rows carry the state as a
// JSON-encoded string, so strings are parsed a second time.
func (d *Decoder) state(dt DeviceType, v *fastjson.Value) State {
	if v != nil && v.Type() == fastjson.TypeString {
		raw, _ := v.StringBytes()
		var p fastjson.Parser
		inner, err := p.ParseBytes(raw)
		if err != nil {
			return emptyState(dt)
		}
		return buildState(dt, inner)
	}
	if v == nil || v.Type() != fastjson.TypeObject {
		return emptyState(dt)
	}
	return buildState(dt, v)
}

func emptyState(dt DeviceType) State {
	switch dt {
	case DeviceLight:
		return LightState{}
	case DeviceSpeaker:
		return SpeakerState{}
	default:
		return OtherState{Fields: map[string]any{}}
	}
}

func buildState(dt DeviceType, v *fastjson.Value) State {
	if v.Type() != fastjson.TypeObject {
		return emptyState(dt)
	}
	switch dt {
	case DeviceLight:
		return LightState{
			Power:      stringField(v, "power"),
			Brightness: intField(v, "brightness"),
			Color:      stringField(v, "color"),
			Mode:       stringField(v, "mode"),
		}
	case DeviceSpeaker:
		return SpeakerState{
			Power:  stringField(v, "power"),
			Volume: intField(v, "volume"),
			Mode:   stringField(v, "mode"),
		}
	default:
		st := OtherState{Power: stringField(v, "power"), Fields: map[string]any{}}
		obj, _ := v.Object()
		obj.Visit(func(key []byte, val *fastjson.Value) {
			if string(key) == "power" {
				return
			}
			st.Fields[string(key)] = ToAny(val)
		})
		return st
	}
}

// stringField returns a string field, rendering numbers as text so that
// numeric ids survive.
func stringField(v *fastjson.Value, key string) string {
	f := v.Get(key)
	if f == nil {
		return ""
	}
	switch f.Type() {
	case fastjson.TypeString:
		b, _ := f.StringBytes()
		return string(b)
	case fastjson.TypeNumber:
		return f.String()
	default:
		return ""
	}
}

// intField returns a numeric field as an int, accepting numeric strings.
// A missing or non-numeric field is nil.
func intField(v *fastjson.Value, key string) *int {
	f := v.Get(key)
	if f == nil {
		return nil
	}
	switch f.Type() {
	case fastjson.TypeNumber:
		n, err := f.Float64()
		if err != nil {
			return nil
		}
		i := int(math.Round(n))
		return &i
	case fastjson.TypeString:
		b, _ := f.StringBytes()
		n, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
		if err != nil {
			return nil
		}
		i := int(math.Round(n))
		return &i
	default:
		return nil
	}
}

// ToAny converts a parsed JSON value into plain Go values: map[string]any,
// []any, string, float64, bool or nil.
func ToAny(v *fastjson.Value) any {
	if v == nil {
		return nil
	}
	switch v.Type() {
	case fastjson.TypeObject:
		obj, _ := v.Object()
		m := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			m[string(key)] = ToAny(val)
		})
		return m
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = ToAny(item)
		}
		return out
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeNumber:
		n, _ := v.Float64()
		return n
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
