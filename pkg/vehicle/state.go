// Package vehicle folds broadcast telemetry events into the latest known
// vehicle state, the way a subscriber's dashboard does.
package vehicle

import (
	"time"

	"dronebridge/pkg/telemetry"
)

const (
	StatusLogSize = 50
	TrackSize     = 500
)

// Status is a status text with its arrival time.
type Status struct {
	At       time.Time
	Severity uint8
	Text     string
}

// State is the accumulated view of one vehicle. Apply is not safe for
// concurrent use.
type State struct {
	Position   telemetry.Position
	Heartbeat  telemetry.Heartbeat
	Battery    telemetry.Battery
	GPS        telemetry.GPS
	Attitude   telemetry.Attitude
	HUD        telemetry.VFRHUD
	CurrentWP  int
	FlightTime time.Duration
	LastUpdate time.Time
	Updates    uint64
	Mission    *Mission
	Statuses   *Ring[Status]
	Track      *Ring[telemetry.Position]
	now        func() time.Time
}

func NewState() *State {
	return &State{
		Mission:  NewMission(),
		Statuses: NewRing[Status](StatusLogSize),
		Track:    NewRing[telemetry.Position](TrackSize),
		now:      time.Now,
	}
}

// Apply merges one event into the state. Unknown event types are ignored.
func (s *State) Apply(ev telemetry.Event) {
	switch e := ev.(type) {
	case telemetry.Position:
		s.Position = e
		s.Track.Push(e)
	case telemetry.Heartbeat:
		s.Heartbeat = e
	case telemetry.Battery:
		s.Battery = e
	case telemetry.GPS:
		s.GPS = e
	case telemetry.Attitude:
		s.Attitude = e
	case telemetry.VFRHUD:
		s.HUD = e
	case telemetry.MissionCurrent:
		s.CurrentWP = e.Seq
	case telemetry.FlightTime:
		s.FlightTime = time.Duration(e.Seconds) * time.Second
	case telemetry.Waypoint:
		s.Mission.Add(e)
	case telemetry.MissionCount:
		s.Mission.SetExpected(e.Count)
	case telemetry.StatusText:
		s.Statuses.Push(Status{At: s.now(), Severity: e.Severity, Text: e.Text})
	default:
		return
	}
	s.Updates++
	s.LastUpdate = s.now()
}

// RecentStatuses returns status texts newest first.
func (s *State) RecentStatuses() []Status {
	items := s.Statuses.Items()
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

// Reset forgets everything, as on reconnect to a different bridge.
func (s *State) Reset() {
	now := s.now
	*s = *NewState()
	s.now = now
}
