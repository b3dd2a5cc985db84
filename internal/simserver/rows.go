package simserver

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/valyala/fastjson"

	"github.com/nixlim/hometop/internal/simulator"
	"github.com/nixlim/hometop/internal/telemetry"
)

// RowsFromEvents converts simulated events into storable rows.
func RowsFromEvents(events []simulator.Event) []LogRow {
	rows := make([]LogRow, 0, len(events))
	var a fastjson.Arena
	for _, e := range events {
		a.Reset()
		rows = append(rows, LogRow{
			DeviceType: e.DeviceType,
			DeviceID:   e.DeviceID,
			UserID:     e.UserID,
			Action:     e.Action,
			Value:      valueText(e.Value),
			Func:       e.Func,
			Timestamp:  e.Timestamp,
			State:      string(toJSON(&a, e.State).MarshalTo(nil)),
		})
	}
	return rows
}

func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// toJSON builds a fastjson value from the plain Go values a device state
// holds.
func toJSON(a *fastjson.Arena, v any) *fastjson.Value {
	switch x := v.(type) {
	case nil:
		return a.NewNull()
	case string:
		return a.NewString(x)
	case bool:
		if x {
			return a.NewTrue()
		}
		return a.NewFalse()
	case int:
		return a.NewNumberInt(x)
	case int64:
		return a.NewNumberString(strconv.FormatInt(x, 10))
	case float64:
		return a.NewNumberFloat64(x)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		o := a.NewObject()
		for _, k := range keys {
			o.Set(k, toJSON(a, x[k]))
		}
		return o
	case []any:
		arr := a.NewArray()
		for i, item := range x {
			arr.SetArrayItem(i, toJSON(a, item))
		}
		return arr
	default:
		return a.NewString(fmt.Sprint(x))
	}
}

// rowFromJSON converts one ingested log object. ok is false when the
// object lacks a device id, user id or parseable timestamp.
func rowFromJSON(v *fastjson.Value, loc *time.Location) (LogRow, bool) {
	if v == nil || v.Type() != fastjson.TypeObject {
		return LogRow{}, false
	}

	row := LogRow{
		DeviceType: str(v, "device_type"),
		DeviceID:   str(v, "device_id"),
		UserID:     str(v, "user_id"),
		Action:     str(v, "action"),
		Func:       str(v, "function"),
		State:      "{}",
	}
	if row.Func == "" {
		row.Func = str(v, "func")
	}
	if row.DeviceID == "" || row.UserID == "" {
		return LogRow{}, false
	}

	ts, ok := telemetry.ParseTimestamp(str(v, "timestamp"), loc)
	if !ok {
		return LogRow{}, false
	}
	row.Timestamp = ts

	if val := v.Get("value"); val != nil && val.Type() != fastjson.TypeNull {
		if val.Type() == fastjson.TypeString {
			row.Value = string(val.GetStringBytes())
		} else {
			row.Value = string(val.MarshalTo(nil))
		}
	}

	if st := v.Get("state"); st != nil {
		switch st.Type() {
		case fastjson.TypeObject:
			row.State = string(st.MarshalTo(nil))
		case fastjson.TypeString:
			// Already JSON text, as SQL result rows carry it.
			raw := st.GetStringBytes()
			if fastjson.ValidateBytes(raw) == nil {
				row.State = string(raw)
			}
		}
	}
	return row, true
}

// str reads a string field, rendering numbers as text.
func str(v *fastjson.Value, key string) string {
	f := v.Get(key)
	if f == nil {
		return ""
	}
	switch f.Type() {
	case fastjson.TypeString:
		return string(f.GetStringBytes())
	case fastjson.TypeNumber:
		return f.String()
	default:
		return ""
	}
}
