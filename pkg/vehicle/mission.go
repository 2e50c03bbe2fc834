package vehicle

import (
	"sort"

	"dronebridge/pkg/telemetry"
)

// Mission is the set of waypoints received for the current mission, keyed
// by sequence number. The first waypoint seen for a seq wins.
type Mission struct {
	bySeq    map[int]telemetry.Waypoint
	expected int
}

func NewMission() *Mission {
	return &Mission{bySeq: make(map[int]telemetry.Waypoint)}
}

// Add stores wp unless its seq is already present. It reports whether the
// waypoint was stored.
func (m *Mission) Add(wp telemetry.Waypoint) bool {
	if _, dup := m.bySeq[wp.Seq]; dup {
		return false
	}
	m.bySeq[wp.Seq] = wp
	return true
}

// SetExpected records the announced mission size.
func (m *Mission) SetExpected(n int) { m.expected = n }

// Complete reports whether every announced waypoint has arrived.
func (m *Mission) Complete() bool {
	return m.expected > 0 && len(m.bySeq) >= m.expected
}

func (m *Mission) Len() int      { return len(m.bySeq) }
func (m *Mission) Expected() int { return m.expected }

// Waypoints returns the mission in seq order.
func (m *Mission) Waypoints() []telemetry.Waypoint {
	out := make([]telemetry.Waypoint, 0, len(m.bySeq))
	for _, wp := range m.bySeq {
		out = append(out, wp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (m *Mission) Get(seq int) (telemetry.Waypoint, bool) {
	wp, ok := m.bySeq[seq]
	return wp, ok
}

func (m *Mission) Reset() {
	m.bySeq = make(map[int]telemetry.Waypoint)
	m.expected = 0
}
