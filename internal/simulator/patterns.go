package simulator

import (
	"math/rand"
	"time"
)

// Pattern describes when a user interacts with their devices.
type Pattern struct {
	Name string
	// ActiveHours holds [start, end) hour ranges.
	ActiveHours [][2]int
	Weekday     float64
	Weekend     float64
}

// Active reports whether t falls inside one of the pattern's hour ranges.
func (p Pattern) Active(t time.Time) bool {
	h := t.Hour()
	for _, r := range p.ActiveHours {
		if h >= r[0] && h < r[1] {
			return true
		}
	}
	return false
}

// Probability returns the interaction probability for t's day of week.
func (p Pattern) Probability(t time.Time) float64 {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return p.Weekend
	default:
		return p.Weekday
	}
}

func (p Pattern) shouldInteract(t time.Time, rng *rand.Rand) bool {
	return p.Active(t) && rng.Float64() < p.Probability(t)
}

var patterns = []Pattern{
	{Name: "Office Worker", ActiveHours: [][2]int{{6, 9}, {18, 23}}, Weekday: 0.7, Weekend: 0.9},
	{Name: "Remote Worker", ActiveHours: [][2]int{{8, 22}}, Weekday: 0.8, Weekend: 0.9},
	{Name: "Student", ActiveHours: [][2]int{{7, 9}, {14, 24}}, Weekday: 0.6, Weekend: 0.95},
	{Name: "Stay-at-home Parent", ActiveHours: [][2]int{{6, 22}}, Weekday: 0.85, Weekend: 0.9},
	{Name: "Night Shift Worker", ActiveHours: [][2]int{{5, 8}, {16, 19}}, Weekday: 0.7, Weekend: 0.8},
	{Name: "Elderly Resident", ActiveHours: [][2]int{{5, 21}}, Weekday: 0.75, Weekend: 0.75},
	{Name: "Freelancer", ActiveHours: [][2]int{{9, 23}}, Weekday: 0.75, Weekend: 0.85},
	{Name: "Weekend Traveler", ActiveHours: [][2]int{{6, 9}, {17, 23}}, Weekday: 0.7, Weekend: 0.3},
	{Name: "Family with Kids", ActiveHours: [][2]int{{6, 8}, {15, 22}}, Weekday: 0.85, Weekend: 0.95},
	{Name: "Fitness Enthusiast", ActiveHours: [][2]int{{5, 7}, {17, 22}}, Weekday: 0.8, Weekend: 0.9},
}

// Patterns returns the built-in user patterns in a fixed order.
func Patterns() []Pattern {
	out := make([]Pattern, len(patterns))
	copy(out, patterns)
	return out
}

// LookupPattern finds a built-in pattern by name.
func LookupPattern(name string) (Pattern, bool) {
	for _, p := range patterns {
		if p.Name == name {
			return p, true
		}
	}
	return Pattern{}, false
}
