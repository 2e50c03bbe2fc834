package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"dronebridge/pkg/telemetry"
)

// Phase is the simulator's flight phase.
type Phase string

const (
	PhaseTakeoff Phase = "TAKEOFF"
	PhaseAuto    Phase = "AUTO"
	PhaseRTL     Phase = "RTL"
	PhaseLand    Phase = "LAND"
)

const (
	takeoffStep    = 2.0    // m per tick
	targetAltitude = 50.0   // m
	cruiseStep     = 0.0002 // deg per tick, ~20 m
	returnStep     = 0.0003 // deg per tick
	arrivalEpsilon = 0.0001 // deg
	altitudeGain   = 0.1    // share of altitude error corrected per tick
	landStep       = 3.0    // m per tick

	cruiseSpeed    = 8.5  // m/s
	flyingCurrent  = 15.5 // A
	flyingThrottle = 55   // percent
	takeoffClimb   = 2.0  // m/s
	landingClimb   = -3.0 // m/s

	batteryDrain  = 0.02 // percent per tick
	batteryFloor  = 5.0
	voltageEmpty  = 14.0
	voltageFull   = 16.8
	systemActive  = 4
	severityInfo  = 6
	gpsFix3D      = 3
	gpsSatellites = 14
	gpsHDOP       = 0.8
	rollAmplitude = 5.0 // deg
	pitchBase     = -3.0
	pitchJitter   = 2.0
)

// Config tunes a Simulator. Zero values take defaults.
type Config struct {
	Route        []telemetry.Waypoint
	Interval     time.Duration
	RestartDelay time.Duration
	Seed         int64
}

// Simulator is a synthetic vehicle flying TAKEOFF, AUTO, RTL and LAND in a
// loop. It is not safe for concurrent use; Run drives it from one goroutine.
type Simulator struct {
	route        []telemetry.Waypoint
	interval     time.Duration
	restartDelay time.Duration
	rng          *rand.Rand
	logger       logrus.FieldLogger

	phase   Phase
	lat     float64
	lon     float64
	alt     float64
	heading float64
	wpIndex int
	armed   bool
	landed  bool
	battery float64
	voltage float64
	ticks   uint64
	armedAt uint64
	flightS int64
	roll    float64
	pitch   float64
	yaw     float64
}

func New(cfg Config, logger logrus.FieldLogger) (*Simulator, error) {
	route := cfg.Route
	if len(route) == 0 {
		route = DefaultRoute()
	}
	if err := validateRoute(route); err != nil {
		return nil, err
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	restartDelay := cfg.RestartDelay
	if restartDelay <= 0 {
		restartDelay = 5 * time.Second
	}
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}

	s := &Simulator{
		route:        append([]telemetry.Waypoint(nil), route...),
		interval:     interval,
		restartDelay: restartDelay,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		logger:       logger,
	}
	s.reset()
	return s, nil
}

func (s *Simulator) reset() {
	home := s.route[0]
	s.phase = PhaseTakeoff
	s.lat = home.Lat
	s.lon = home.Lon
	s.alt = 0
	s.heading = 0
	s.wpIndex = 0
	s.armed = false
	s.landed = false
	s.battery = 100
	s.voltage = voltageFull
	s.flightS = 0
}

// Step advances one tick and returns the events it produced: transition
// status texts first, then the periodic state report.
func (s *Simulator) Step() []telemetry.Event {
	var events []telemetry.Event
	status := func(text string) {
		events = append(events, telemetry.StatusText{Severity: severityInfo, Text: text})
	}

	if s.armed && s.battery > batteryFloor {
		s.battery -= batteryDrain
		s.voltage = voltageEmpty + (s.battery/100)*(voltageFull-voltageEmpty)
	}

	switch s.phase {
	case PhaseTakeoff:
		if !s.armed {
			s.armed = true
			s.armedAt = s.ticks
			status("Arming motors")
		}
		s.alt += takeoffStep
		if s.alt >= targetAltitude {
			s.phase = PhaseAuto
			status("Reached altitude, starting mission")
		}

	case PhaseAuto:
		target := s.route[s.wpIndex]
		if !s.flyToward(target, cruiseStep) {
			status(fmt.Sprintf("Reached WP %d", s.wpIndex+1))
			s.wpIndex++
			if s.wpIndex >= len(s.route) {
				s.phase = PhaseRTL
				s.wpIndex = 0
				status("Mission complete, RTL")
			}
		}

	case PhaseRTL:
		if !s.flyToward(s.route[0], returnStep) {
			s.phase = PhaseLand
			status("Landing")
		}

	case PhaseLand:
		if !s.landed {
			s.alt -= landStep
			if s.alt <= 0 {
				s.alt = 0
				s.armed = false
				s.landed = true
				status("Landed, disarmed")
			}
		}
	}

	s.updateAttitude()
	if s.armed {
		s.flightS = int64((s.ticks - s.armedAt) * uint64(s.interval) / uint64(time.Second))
	}
	s.ticks++

	return append(events, s.report()...)
}

// flyToward moves one step toward target and reports whether the vehicle
// is still en route. Within one step it lands exactly on the target.
func (s *Simulator) flyToward(target telemetry.Waypoint, step float64) bool {
	dist := planarDistance(s.lat, s.lon, target.Lat, target.Lon)
	if dist <= arrivalEpsilon {
		return false
	}

	move := math.Min(step, dist)
	s.lat += (target.Lat - s.lat) / dist * move
	s.lon += (target.Lon - s.lon) / dist * move
	if planarDistance(s.lat, s.lon, target.Lat, target.Lon) > 0 {
		s.heading = Bearing(s.lat, s.lon, target.Lat, target.Lon)
	}
	s.alt += (target.Alt - s.alt) * altitudeGain
	return true
}

func (s *Simulator) updateAttitude() {
	if s.cruising() {
		elapsed := float64(s.ticks) * s.interval.Seconds()
		s.roll = math.Sin(elapsed) * rollAmplitude
		s.pitch = pitchBase + s.rng.Float64()*pitchJitter
		s.yaw = s.heading
		return
	}
	s.roll = 0
	s.pitch = 0
}

func (s *Simulator) cruising() bool {
	return s.phase == PhaseAuto || s.phase == PhaseRTL
}

func (s *Simulator) report() []telemetry.Event {
	speed := 0.0
	if s.cruising() {
		speed = cruiseSpeed
	}
	current := 0.0
	throttle := 0.0
	if s.armed {
		current = flyingCurrent
		throttle = flyingThrottle
	}
	climb := 0.0
	switch {
	case s.phase == PhaseTakeoff:
		climb = takeoffClimb
	case s.phase == PhaseLand && !s.landed:
		climb = landingClimb
	}

	return []telemetry.Event{
		telemetry.Position{
			Lat:         s.lat,
			Lon:         s.lon,
			Alt:         s.alt,
			RelativeAlt: s.alt,
			Heading:     s.heading,
			Speed:       speed,
		},
		telemetry.Heartbeat{Mode: ModeLabel(s.phase), Armed: s.armed, SystemStatus: systemActive},
		telemetry.Battery{Voltage: s.voltage, Current: current, Remaining: int(math.Round(s.battery))},
		telemetry.GPS{FixType: gpsFix3D, FixTypeName: telemetry.FixTypeName(gpsFix3D), Satellites: gpsSatellites, HDOP: gpsHDOP},
		telemetry.Attitude{Roll: s.roll, Pitch: s.pitch, Yaw: s.yaw},
		telemetry.VFRHUD{
			Airspeed:    speed,
			Groundspeed: speed,
			Heading:     s.heading,
			Throttle:    throttle,
			Alt:         s.alt,
			ClimbRate:   climb,
		},
		telemetry.FlightTime{Seconds: s.flightS},
		telemetry.MissionCurrent{Seq: s.wpIndex},
	}
}

// Restart begins a new mission after a landing. It reports false when the
// vehicle has not landed yet.
func (s *Simulator) Restart() ([]telemetry.Event, bool) {
	if !s.landed {
		return nil, false
	}
	s.reset()
	return []telemetry.Event{telemetry.StatusText{Severity: severityInfo, Text: "Starting new mission..."}}, true
}

// ModeLabel is the flight mode reported for a phase. TAKEOFF is reported
// as AUTO, the mode an autopilot flies a scripted takeoff in.
func ModeLabel(p Phase) string {
	if p == PhaseTakeoff {
		return string(PhaseAuto)
	}
	return string(p)
}

// MissionEvents is the mission upload sent to new subscribers: every
// waypoint followed by the count. The route never changes after New, so
// it may be called from any goroutine.
func (s *Simulator) MissionEvents() []telemetry.Event {
	events := make([]telemetry.Event, 0, len(s.route)+1)
	for _, wp := range s.route {
		events = append(events, wp)
	}
	return append(events, telemetry.MissionCount{Count: len(s.route)})
}

func (s *Simulator) Phase() Phase       { return s.phase }
func (s *Simulator) Armed() bool        { return s.armed }
func (s *Simulator) Altitude() float64  { return s.alt }
func (s *Simulator) WaypointIndex() int { return s.wpIndex }
func (s *Simulator) Landed() bool       { return s.landed }

// Position returns the simulated latitude and longitude.
func (s *Simulator) Position() (lat, lon float64) { return s.lat, s.lon }
