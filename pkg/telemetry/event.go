package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the "type" tag carried by every broadcast message.
type Kind string

const (
	KindPosition       Kind = "position"
	KindHeartbeat      Kind = "heartbeat"
	KindBattery        Kind = "battery"
	KindGPS            Kind = "gps"
	KindAttitude       Kind = "attitude"
	KindVFRHUD         Kind = "vfr_hud"
	KindMissionCurrent Kind = "mission_current"
	KindFlightTime     Kind = "flight_time"
	KindWaypoint       Kind = "waypoint"
	KindMissionCount   Kind = "mission_count"
	KindStatusText     Kind = "status_text"
)

// Event is one semantic telemetry update. Each variant marshals to a flat
// JSON object with a "type" field naming its Kind.
type Event interface {
	Kind() Kind
}

type Position struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Alt         float64 `json:"alt"`
	RelativeAlt float64 `json:"relativeAlt"`
	Heading     float64 `json:"heading"`
	Speed       float64 `json:"speed"`
}

type Heartbeat struct {
	Mode         string `json:"mode"`
	Armed        bool   `json:"armed"`
	SystemStatus uint8  `json:"systemStatus"`
}

type Battery struct {
	Voltage   float64 `json:"voltage"`
	Current   float64 `json:"current"`
	Remaining int     `json:"remaining"`
}

type GPS struct {
	FixType     uint8   `json:"fixType"`
	FixTypeName string  `json:"fixTypeName"`
	Satellites  uint8   `json:"satellites"`
	HDOP        float64 `json:"hdop"`
}

type Attitude struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

type VFRHUD struct {
	Airspeed    float64 `json:"airspeed"`
	Groundspeed float64 `json:"groundspeed"`
	Heading     float64 `json:"heading"`
	Throttle    float64 `json:"throttle"`
	Alt         float64 `json:"alt"`
	ClimbRate   float64 `json:"climbRate"`
}

type MissionCurrent struct {
	Seq int `json:"seq"`
}

type FlightTime struct {
	Seconds int64 `json:"seconds"`
}

// Waypoint is a mission item. Seq is its identity within a mission.
type Waypoint struct {
	Seq     int     `json:"seq"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Alt     float64 `json:"alt"`
	Command int     `json:"command"`
}

type MissionCount struct {
	Count int `json:"count"`
}

type StatusText struct {
	Severity uint8  `json:"severity"`
	Text     string `json:"text"`
}

func (Position) Kind() Kind       { return KindPosition }
func (Heartbeat) Kind() Kind      { return KindHeartbeat }
func (Battery) Kind() Kind        { return KindBattery }
func (GPS) Kind() Kind            { return KindGPS }
func (Attitude) Kind() Kind       { return KindAttitude }
func (VFRHUD) Kind() Kind         { return KindVFRHUD }
func (MissionCurrent) Kind() Kind { return KindMissionCurrent }
func (FlightTime) Kind() Kind     { return KindFlightTime }
func (Waypoint) Kind() Kind       { return KindWaypoint }
func (MissionCount) Kind() Kind   { return KindMissionCount }
func (StatusText) Kind() Kind     { return KindStatusText }

func (e Position) MarshalJSON() ([]byte, error) {
	type alias Position
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e Heartbeat) MarshalJSON() ([]byte, error) {
	type alias Heartbeat
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e Battery) MarshalJSON() ([]byte, error) {
	type alias Battery
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e GPS) MarshalJSON() ([]byte, error) {
	type alias GPS
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e Attitude) MarshalJSON() ([]byte, error) {
	type alias Attitude
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e VFRHUD) MarshalJSON() ([]byte, error) {
	type alias VFRHUD
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e MissionCurrent) MarshalJSON() ([]byte, error) {
	type alias MissionCurrent
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e FlightTime) MarshalJSON() ([]byte, error) {
	type alias FlightTime
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e Waypoint) MarshalJSON() ([]byte, error) {
	type alias Waypoint
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e MissionCount) MarshalJSON() ([]byte, error) {
	type alias MissionCount
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

func (e StatusText) MarshalJSON() ([]byte, error) {
	type alias StatusText
	return marshalLiteral(struct {
		Type Kind `json:"type"`
		alias
	}{e.Kind(), alias(e)})
}

// Encode serializes an event into its broadcast form. Status text is
// written as received, without HTML escaping.
func Encode(e Event) ([]byte, error) {
	return marshalLiteral(e)
}

func marshalLiteral(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a broadcast message back into its concrete event.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var ev Event
	var err error
	switch head.Type {
	case KindPosition:
		ev, err = decodeAs[Position](data)
	case KindHeartbeat:
		ev, err = decodeAs[Heartbeat](data)
	case KindBattery:
		ev, err = decodeAs[Battery](data)
	case KindGPS:
		ev, err = decodeAs[GPS](data)
	case KindAttitude:
		ev, err = decodeAs[Attitude](data)
	case KindVFRHUD:
		ev, err = decodeAs[VFRHUD](data)
	case KindMissionCurrent:
		ev, err = decodeAs[MissionCurrent](data)
	case KindFlightTime:
		ev, err = decodeAs[FlightTime](data)
	case KindWaypoint:
		ev, err = decodeAs[Waypoint](data)
	case KindMissionCount:
		ev, err = decodeAs[MissionCount](data)
	case KindStatusText:
		ev, err = decodeAs[StatusText](data)
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
	return ev, err
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
