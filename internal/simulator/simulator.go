// Package simulator generates smart-device interaction logs for a set of
// users with daily activity patterns. Output is deterministic for a seed.
package simulator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	minStep = 1
	maxStep = 5
)

// User is a simulated household member.
type User struct {
	ID      string
	Pattern Pattern
}

// Simulator owns users, their devices and the random source driving them.
// It is not safe for concurrent use.
type Simulator struct {
	rng     *rand.Rand
	users   []User
	byID    map[string]int
	devices []device
}

// New returns an empty simulator seeded with seed.
func New(seed int64) *Simulator {
	return &Simulator{
		rng:  rand.New(rand.NewSource(seed)),
		byID: make(map[string]int),
	}
}

func (s *Simulator) newID() string {
	id, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		// math/rand never fails a Read.
		panic(err)
	}
	return id.String()
}

// AddUser registers a user following the named pattern and returns its id.
func (s *Simulator) AddUser(pattern string) (string, error) {
	p, ok := LookupPattern(pattern)
	if !ok {
		return "", fmt.Errorf("unknown user pattern %q", pattern)
	}
	u := User{ID: s.newID(), Pattern: p}
	s.byID[u.ID] = len(s.users)
	s.users = append(s.users, u)
	return u.ID, nil
}

// AddDevice gives the user a device of the given kind and returns its id.
func (s *Simulator) AddDevice(kind Kind, userID string) (string, error) {
	if _, ok := s.byID[userID]; !ok {
		return "", fmt.Errorf("unknown user %q", userID)
	}
	id := s.newID()
	switch kind {
	case KindLight:
		s.devices = append(s.devices, newLight(id, userID))
	case KindSpeaker:
		s.devices = append(s.devices, newSpeaker(id, userID))
	case KindAirConditioner:
		s.devices = append(s.devices, newAirConditioner(id, userID))
	case KindRobotVacuum:
		s.devices = append(s.devices, newRobotVacuum(id, userID))
	case KindWashingMachine:
		s.devices = append(s.devices, newWashingMachine(id, userID))
	default:
		return "", fmt.Errorf("unknown device kind %q", kind)
	}
	return id, nil
}

// Populate adds users cycling through the built-in patterns, each with
// devicesPerUser devices. Device kinds cycle through Kinds across the
// whole household.
func (s *Simulator) Populate(users, devicesPerUser int) error {
	n := 0
	for i := range users {
		uid, err := s.AddUser(patterns[i%len(patterns)].Name)
		if err != nil {
			return err
		}
		for range devicesPerUser {
			if _, err := s.AddDevice(Kinds[n%len(Kinds)], uid); err != nil {
				return err
			}
			n++
		}
	}
	return nil
}

// Users returns the registered users in insertion order.
func (s *Simulator) Users() []User {
	out := make([]User, len(s.users))
	copy(out, s.users)
	return out
}

// DeviceCount returns how many devices are registered.
func (s *Simulator) DeviceCount() int {
	return len(s.devices)
}

// Simulate advances a clock from start for the given number of hours in
// random 1-5 minute steps. At each step every device whose owner decides
// to interact emits one event.
func (s *Simulator) Simulate(start time.Time, hours int) []Event {
	end := start.Add(time.Duration(hours) * time.Hour)
	var events []Event
	for now := start; now.Before(end); now = now.Add(s.step()) {
		for _, d := range s.devices {
			owner := s.users[s.byID[d.owner()]]
			if !owner.Pattern.shouldInteract(now, s.rng) {
				continue
			}
			events = append(events, d.act(now, s.rng))
		}
	}
	return events
}

func (s *Simulator) step() time.Duration {
	return time.Duration(minStep+s.rng.Intn(maxStep-minStep+1)) * time.Minute
}
