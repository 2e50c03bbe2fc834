package telemetry

import (
	"math"
	"unicode/utf8"

	"dronebridge/pkg/protocol"
)

const (
	// baseModeCustomEnabled | baseModeSafetyArmed as written by autopilots.
	baseModeCustomEnabled = 0x01
	baseModeSafetyArmed   = 0x80

	maxStatusTextLen = 50
)

// FromMessage maps a decoded frame onto its semantic event. It reports
// false for frames that carry nothing to broadcast: ids without a layout
// and status texts that are empty once trimmed.
func FromMessage(msg protocol.Message) (Event, bool) {
	switch m := msg.(type) {
	case protocol.Heartbeat:
		return Heartbeat{
			Mode:         ModeName(m.CustomMode),
			Armed:        m.Armed(),
			SystemStatus: m.SystemStatus,
		}, true
	case protocol.SysStatus:
		return Battery{
			Voltage:   m.Voltage,
			Current:   m.Current,
			Remaining: int(m.Remaining),
		}, true
	case protocol.GPSRawInt:
		return GPS{
			FixType:     m.FixType,
			FixTypeName: FixTypeName(m.FixType),
			Satellites:  m.Satellites,
			HDOP:        m.HDOP,
		}, true
	case protocol.Attitude:
		return Attitude{Roll: m.Roll, Pitch: m.Pitch, Yaw: m.Yaw}, true
	case protocol.GlobalPositionInt:
		return Position{
			Lat:         m.Lat,
			Lon:         m.Lon,
			Alt:         m.Alt,
			RelativeAlt: m.RelativeAlt,
			Heading:     m.Heading,
			Speed:       math.Hypot(m.VX, m.VY),
		}, true
	case protocol.MissionCurrent:
		return MissionCurrent{Seq: int(m.Seq)}, true
	case protocol.MissionCount:
		return MissionCount{Count: int(m.Count)}, true
	case protocol.MissionItemInt:
		return Waypoint{
			Seq:     int(m.Seq),
			Lat:     m.Lat,
			Lon:     m.Lon,
			Alt:     float64(m.Alt),
			Command: int(m.Command),
		}, true
	case protocol.VFRHUD:
		return VFRHUD{
			Airspeed:    float64(m.Airspeed),
			Groundspeed: float64(m.Groundspeed),
			Heading:     float64(m.Heading),
			Throttle:    float64(m.Throttle),
			Alt:         float64(m.Alt),
			ClimbRate:   float64(m.ClimbRate),
		}, true
	case protocol.StatusText:
		if m.Text == "" {
			return nil, false
		}
		return StatusText{Severity: m.Severity, Text: m.Text}, true
	default:
		return nil, false
	}
}

// ToMessage is the reverse mapping used when replaying events onto the
// wire. Flight time has no frame and reports false.
func ToMessage(ev Event) (protocol.Message, bool) {
	switch e := ev.(type) {
	case Position:
		rad := e.Heading * math.Pi / 180
		return protocol.GlobalPositionInt{
			Lat:         e.Lat,
			Lon:         e.Lon,
			Alt:         e.Alt,
			RelativeAlt: e.RelativeAlt,
			VX:          e.Speed * math.Cos(rad),
			VY:          e.Speed * math.Sin(rad),
			Heading:     e.Heading,
		}, true
	case Heartbeat:
		code, _ := ModeCode(e.Mode)
		base := uint8(baseModeCustomEnabled)
		if e.Armed {
			base |= baseModeSafetyArmed
		}
		return protocol.Heartbeat{CustomMode: code, BaseMode: base, SystemStatus: e.SystemStatus}, true
	case Battery:
		return protocol.SysStatus{Voltage: e.Voltage, Current: e.Current, Remaining: uint8(e.Remaining)}, true
	case GPS:
		return protocol.GPSRawInt{HDOP: e.HDOP, FixType: e.FixType, Satellites: e.Satellites}, true
	case Attitude:
		return protocol.Attitude{Roll: e.Roll, Pitch: e.Pitch, Yaw: e.Yaw}, true
	case VFRHUD:
		return protocol.VFRHUD{
			Airspeed:    float32(e.Airspeed),
			Groundspeed: float32(e.Groundspeed),
			Alt:         float32(e.Alt),
			Heading:     int16(math.Round(e.Heading)),
			Throttle:    uint16(math.Round(e.Throttle)),
			ClimbRate:   float32(e.ClimbRate),
		}, true
	case MissionCurrent:
		return protocol.MissionCurrent{Seq: uint16(e.Seq)}, true
	case MissionCount:
		return protocol.MissionCount{Count: uint16(e.Count)}, true
	case Waypoint:
		return protocol.MissionItemInt{
			Seq:     uint16(e.Seq),
			Lat:     e.Lat,
			Lon:     e.Lon,
			Alt:     float32(e.Alt),
			Command: uint16(e.Command),
		}, true
	case StatusText:
		return protocol.StatusText{Severity: e.Severity, Text: truncateText(e.Text, maxStatusTextLen)}, true
	default:
		return nil, false
	}
}

// truncateText cuts s to at most n bytes without splitting a rune.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
