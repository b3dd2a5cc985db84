package simulator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Kind names a simulated device model. Its value is the device_type the
// device reports.
type Kind string

const (
	KindLight          Kind = "Light"
	KindSpeaker        Kind = "Speaker"
	KindAirConditioner Kind = "AirConditioner"
	KindRobotVacuum    Kind = "RobotVacuum"
	KindWashingMachine Kind = "WashingMachine"
)

// Kinds lists the device kinds in the order Populate assigns them.
var Kinds = []Kind{KindLight, KindSpeaker, KindAirConditioner, KindRobotVacuum, KindWashingMachine}

// Event is one simulated interaction. State is a copy of the device state
// after the action.
type Event struct {
	DeviceType string
	DeviceID   string
	UserID     string
	Action     string
	Value      any
	Func       string
	Timestamp  time.Time
	State      map[string]any
}

type device interface {
	kind() Kind
	id() string
	owner() string
	act(t time.Time, rng *rand.Rand) Event
}

type base struct {
	k      Kind
	devID  string
	userID string
	state  map[string]any
}

func (b *base) kind() Kind    { return b.k }
func (b *base) id() string    { return b.devID }
func (b *base) owner() string { return b.userID }

func (b *base) event(t time.Time, action string, value any, fn string) Event {
	st := make(map[string]any, len(b.state))
	for k, v := range b.state {
		st[k] = v
	}
	return Event{
		DeviceType: string(b.k),
		DeviceID:   b.devID,
		UserID:     b.userID,
		Action:     action,
		Value:      value,
		Func:       fn,
		Timestamp:  t,
		State:      st,
	}
}

func (b *base) togglePower() (string, string) {
	if b.state["power"] == "off" {
		b.state["power"] = "on"
		return "on", "turnOn"
	}
	b.state["power"] = "off"
	return "off", "turnOff"
}

type weighted struct {
	action string
	weight float64
}

func pick(rng *rand.Rand, choices []weighted) string {
	var total float64
	for _, c := range choices {
		total += c.weight
	}
	r := rng.Float64() * total
	for _, c := range choices {
		if r < c.weight {
			return c.action
		}
		r -= c.weight
	}
	return choices[len(choices)-1].action
}

var (
	lightModes  = []string{"normal", "night", "reading", "party"}
	lightColors = []string{"red", "green", "blue", "yellow", "white"}
)

type light struct{ base }

func newLight(id, user string) *light {
	return &light{base{k: KindLight, devID: id, userID: user, state: map[string]any{
		"power":      "off",
		"brightness": 0,
		"color":      "white",
		"mode":       "normal",
	}}}
}

// lightWeights favours power toggles outside the morning and evening
// peaks, and mode changes in the evening.
func lightWeights(hour int) []weighted {
	switch {
	case hour >= 6 && hour < 9:
		return []weighted{{"power", 0.5}, {"brightness", 0.3}, {"setMode", 0.1}, {"setColor", 0.1}}
	case hour >= 17 && hour < 23:
		return []weighted{{"power", 0.4}, {"brightness", 0.3}, {"setMode", 0.2}, {"setColor", 0.1}}
	default:
		return []weighted{{"power", 0.6}, {"brightness", 0.2}, {"setMode", 0.1}, {"setColor", 0.1}}
	}
}

func (l *light) act(t time.Time, rng *rand.Rand) Event {
	action := pick(rng, lightWeights(t.Hour()))
	switch action {
	case "power":
		v, fn := l.togglePower()
		return l.event(t, action, v, fn)
	case "brightness":
		v := rng.Intn(101)
		l.state["brightness"] = v
		return l.event(t, action, v, "setBrightness")
	case "setMode":
		v := lightModes[rng.Intn(len(lightModes))]
		l.state["mode"] = v
		return l.event(t, action, v, "setMode")
	default:
		v := lightColors[rng.Intn(len(lightColors))]
		l.state["color"] = v
		return l.event(t, action, v, "setColor")
	}
}

var speakerTopics = []string{"weather", "news", "time", "joke", "reminder", "music"}

type speaker struct{ base }

func newSpeaker(id, user string) *speaker {
	return &speaker{base{k: KindSpeaker, devID: id, userID: user, state: map[string]any{
		"power":  "off",
		"volume": 50,
		"mode":   "normal",
	}}}
}

func (s *speaker) act(t time.Time, rng *rand.Rand) Event {
	if rng.Intn(2) == 0 {
		v, fn := s.togglePower()
		return s.event(t, "power", v, fn)
	}
	topic := speakerTopics[rng.Intn(len(speakerTopics))]
	return s.event(t, "voice assistant", topic, "get"+strings.ToUpper(topic[:1])+topic[1:])
}

var (
	fanSpeeds = []string{"low", "medium", "high"}
	acModes   = []string{"cooling", "heating", "fan-only"}
)

type airConditioner struct{ base }

func newAirConditioner(id, user string) *airConditioner {
	return &airConditioner{base{k: KindAirConditioner, devID: id, userID: user, state: map[string]any{
		"power":       "off",
		"temperature": 22,
		"fanSpeed":    "medium",
		"mode":        "cooling",
	}}}
}

func (a *airConditioner) act(t time.Time, rng *rand.Rand) Event {
	action := pick(rng, []weighted{{"power", 0.3}, {"temperature", 0.2}, {"fanSpeed", 0.2}, {"mode", 0.3}})
	switch action {
	case "power":
		v, fn := a.togglePower()
		return a.event(t, action, v, fn)
	case "temperature":
		v := 16 + rng.Intn(15)
		a.state["temperature"] = v
		return a.event(t, action, v, "setTemperature")
	case "fanSpeed":
		v := fanSpeeds[rng.Intn(len(fanSpeeds))]
		a.state["fanSpeed"] = v
		return a.event(t, action, v, "setFanSpeed")
	default:
		v := acModes[rng.Intn(len(acModes))]
		a.state["mode"] = v
		return a.event(t, action, v, "setMode")
	}
}

var (
	vacuumStatuses = []string{"idle", "cleaning", "charging"}
	vacuumModes    = []string{"normal", "deepCleaning", "spotCleaning"}
	vacuumFuncs    = map[string]string{"idle": "stopCleaning", "cleaning": "startCleaning", "charging": "charge"}
)

const scheduleLayout = "2006-01-02 15:04:05"

// robotVacuum reports a status rather than power, so it decodes as an
// open-set device.
type robotVacuum struct{ base }

func newRobotVacuum(id, user string) *robotVacuum {
	return &robotVacuum{base{k: KindRobotVacuum, devID: id, userID: user, state: map[string]any{
		"status":   "idle",
		"mode":     "normal",
		"schedule": nil,
	}}}
}

func (v *robotVacuum) act(t time.Time, rng *rand.Rand) Event {
	action := pick(rng, []weighted{{"status", 0.6}, {"mode", 0.3}, {"schedule", 0.1}})
	switch action {
	case "status":
		s := vacuumStatuses[rng.Intn(len(vacuumStatuses))]
		v.state["status"] = s
		return v.event(t, action, s, vacuumFuncs[s])
	case "mode":
		m := vacuumModes[rng.Intn(len(vacuumModes))]
		v.state["mode"] = m
		return v.event(t, action, m, "setMode")
	default:
		start := t.Add(time.Duration(30+rng.Intn(31)) * time.Minute)
		stop := start.Add(time.Duration(30+rng.Intn(91)) * time.Minute)
		s := fmt.Sprintf("Schedule set: %s to %s", start.Format(scheduleLayout), stop.Format(scheduleLayout))
		v.state["schedule"] = s
		return v.event(t, action, s, "setSchedule")
	}
}

var washModes = []string{"quickWash", "delicate", "heavyDuty", "normal"}

type washingMachine struct{ base }

func newWashingMachine(id, user string) *washingMachine {
	return &washingMachine{base{k: KindWashingMachine, devID: id, userID: user, state: map[string]any{
		"status":    "off",
		"wash_mode": "normal",
		"progress":  0,
	}}}
}

func (w *washingMachine) act(t time.Time, rng *rand.Rand) Event {
	action := pick(rng, []weighted{{"status", 0.4}, {"wash_mode", 0.3}, {"progress", 0.3}})
	switch action {
	case "status":
		if rng.Intn(2) == 0 {
			w.state["status"] = "washing"
			return w.event(t, action, "washing", "startWash")
		}
		w.state["status"] = "off"
		return w.event(t, action, "off", "stopWash")
	case "wash_mode":
		m := washModes[rng.Intn(len(washModes))]
		w.state["wash_mode"] = m
		return w.event(t, action, m, "setWashMode")
	default:
		p := rng.Intn(101)
		w.state["progress"] = p
		return w.event(t, action, p, "checkWashProgress")
	}
}
