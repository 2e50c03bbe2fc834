package telemetry

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronebridge/pkg/protocol"
)

func TestFromMessageHeartbeatGuidedArmed(t *testing.T) {
	ev, ok := FromMessage(protocol.Heartbeat{CustomMode: 4, BaseMode: 0x80, SystemStatus: 4})
	require.True(t, ok)
	assert.Equal(t, Heartbeat{Mode: "GUIDED", Armed: true, SystemStatus: 4}, ev)
}

func TestFromMessageHeartbeatUnknownMode(t *testing.T) {
	ev, ok := FromMessage(protocol.Heartbeat{CustomMode: 8})
	require.True(t, ok)
	hb := ev.(Heartbeat)
	assert.Equal(t, "MODE_8", hb.Mode)
	assert.False(t, hb.Armed)

	ev, _ = FromMessage(protocol.Heartbeat{CustomMode: 4000})
	assert.Equal(t, "MODE_4000", ev.(Heartbeat).Mode)
}

func TestFromMessagePositionSpeed(t *testing.T) {
	ev, ok := FromMessage(protocol.GlobalPositionInt{Lat: 13.0827, Lon: 80.2707, VX: 1, VY: 0})
	require.True(t, ok)
	pos := ev.(Position)
	assert.InDelta(t, 13.0827, pos.Lat, 1e-9)
	assert.InDelta(t, 80.2707, pos.Lon, 1e-9)
	assert.InDelta(t, 1.0, pos.Speed, 1e-9)

	ev, _ = FromMessage(protocol.GlobalPositionInt{VX: 3, VY: -4})
	assert.InDelta(t, 5.0, ev.(Position).Speed, 1e-9)
}

func TestFromMessageGPSFixNames(t *testing.T) {
	ev, _ := FromMessage(protocol.GPSRawInt{FixType: 3, Satellites: 14, HDOP: 0.8})
	assert.Equal(t, GPS{FixType: 3, FixTypeName: "3D_FIX", Satellites: 14, HDOP: 0.8}, ev)

	ev, _ = FromMessage(protocol.GPSRawInt{FixType: 9})
	assert.Equal(t, "FIX_9", ev.(GPS).FixTypeName)
}

func TestFromMessageWaypoint(t *testing.T) {
	ev, ok := FromMessage(protocol.MissionItemInt{Seq: 2, Lat: 13.06, Lon: 80.28, Alt: 70, Command: 16})
	require.True(t, ok)
	assert.Equal(t, Waypoint{Seq: 2, Lat: 13.06, Lon: 80.28, Alt: 70, Command: 16}, ev)
}

func TestFromMessageSkipsEmptyStatusText(t *testing.T) {
	_, ok := FromMessage(protocol.StatusText{Severity: 6})
	assert.False(t, ok)

	ev, ok := FromMessage(protocol.StatusText{Severity: 4, Text: "EKF variance"})
	require.True(t, ok)
	assert.Equal(t, StatusText{Severity: 4, Text: "EKF variance"}, ev)
}

func TestFromMessageRawIsIgnored(t *testing.T) {
	_, ok := FromMessage(protocol.RawMessage{ID: 200})
	assert.False(t, ok)
}

func TestToMessageRoundTrip(t *testing.T) {
	events := []Event{
		Heartbeat{Mode: "RTL", Armed: true, SystemStatus: 4},
		Battery{Voltage: 16.2, Current: 15.5, Remaining: 80},
		GPS{FixType: 3, FixTypeName: "3D_FIX", Satellites: 14, HDOP: 0.8},
		MissionCurrent{Seq: 3},
		MissionCount{Count: 6},
		Waypoint{Seq: 1, Lat: 13.055, Lon: 80.285, Alt: 60, Command: 16},
		StatusText{Severity: 6, Text: "Landing"},
	}
	for _, want := range events {
		msg, ok := ToMessage(want)
		require.True(t, ok, "%T", want)
		frame, err := protocol.Encode(protocol.Header{}, msg)
		require.NoError(t, err)
		decoded, err := protocol.Decode(frame)
		require.NoError(t, err)
		got, ok := FromMessage(decoded)
		require.True(t, ok)

		switch w := want.(type) {
		case Battery:
			b := got.(Battery)
			assert.InDelta(t, w.Voltage, b.Voltage, 1e-3)
			assert.InDelta(t, w.Current, b.Current, 1e-2)
			assert.Equal(t, w.Remaining, b.Remaining)
		case GPS:
			g := got.(GPS)
			assert.InDelta(t, w.HDOP, g.HDOP, 1e-2)
			assert.Equal(t, w.FixTypeName, g.FixTypeName)
		case Waypoint:
			wp := got.(Waypoint)
			assert.Equal(t, w.Seq, wp.Seq)
			assert.InDelta(t, w.Lat, wp.Lat, 1e-7)
			assert.InDelta(t, w.Lon, wp.Lon, 1e-7)
		default:
			assert.Equal(t, want, got)
		}
	}
}

func TestToMessageStatusTextKeepsWholeRunes(t *testing.T) {
	// 49 ASCII bytes then a 3-byte rune that would straddle the 50 byte limit.
	text := strings.Repeat("a", 49) + "€"
	msg, ok := ToMessage(StatusText{Severity: 6, Text: text})
	require.True(t, ok)
	st := msg.(protocol.StatusText)
	assert.Equal(t, strings.Repeat("a", 49), st.Text)
	assert.True(t, utf8.ValidString(st.Text))

	frame, err := protocol.Encode(protocol.Header{}, msg)
	require.NoError(t, err)
	decoded, err := protocol.Decode(frame)
	require.NoError(t, err)
	ev, ok := FromMessage(decoded)
	require.True(t, ok)
	assert.Equal(t, StatusText{Severity: 6, Text: strings.Repeat("a", 49)}, ev)

	msg, _ = ToMessage(StatusText{Text: strings.Repeat("é", 30)})
	assert.Equal(t, strings.Repeat("é", 25), msg.(protocol.StatusText).Text)
}

func TestToMessagePositionKeepsSpeed(t *testing.T) {
	msg, ok := ToMessage(Position{Lat: 13.05, Lon: 80.28, Heading: 135, Speed: 8.5})
	require.True(t, ok)
	ev, _ := FromMessage(msg)
	pos := ev.(Position)
	assert.InDelta(t, 8.5, pos.Speed, 1e-9)
	assert.InDelta(t, 135, pos.Heading, 1e-9)
}

func TestToMessageFlightTimeHasNoFrame(t *testing.T) {
	_, ok := ToMessage(FlightTime{Seconds: 10})
	assert.False(t, ok)
}

func TestModeCode(t *testing.T) {
	code, ok := ModeCode("AUTO")
	require.True(t, ok)
	assert.Equal(t, uint32(3), code)

	code, ok = ModeCode("MODE_42")
	require.True(t, ok)
	assert.Equal(t, uint32(42), code)

	_, ok = ModeCode("HOVER")
	assert.False(t, ok)
}
