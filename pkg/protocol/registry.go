package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	// ErrShortFrame means the frame ends before the message id byte.
	ErrShortFrame = errors.New("frame shorter than header")
	// ErrTruncated means the frame is shorter than its id's layout.
	ErrTruncated = errors.New("frame truncated for layout")
)

type codec struct {
	layout Layout
	decode func(v view) Message
	encode func(w writer, m Message)
}

var registry = map[MessageID]*codec{
	MsgHeartbeat: {
		layout: Layout{ID: MsgHeartbeat, Name: "HEARTBEAT", Fields: []Field{
			{Name: "custom_mode", CType: "uint32_t", Offset: 6, Size: 4},
			{Name: "base_mode", CType: "uint8_t", Offset: 12, Size: 1},
			{Name: "system_status", CType: "uint8_t", Offset: 13, Size: 1},
		}},
		decode: func(v view) Message {
			return Heartbeat{
				CustomMode:   uint32(v.num("custom_mode")),
				BaseMode:     uint8(v.num("base_mode")),
				SystemStatus: uint8(v.num("system_status")),
			}
		},
		encode: func(w writer, m Message) {
			hb := m.(Heartbeat)
			w.num("custom_mode", float64(hb.CustomMode))
			w.num("base_mode", float64(hb.BaseMode))
			w.num("system_status", float64(hb.SystemStatus))
		},
	},
	MsgSysStatus: {
		layout: Layout{ID: MsgSysStatus, Name: "SYS_STATUS", Fields: []Field{
			{Name: "voltage_battery", CType: "uint16_t", Offset: 14, Size: 2, Scale: 1e-3},
			{Name: "current_battery", CType: "int16_t", Offset: 16, Size: 2, Scale: 1e-2},
			{Name: "battery_remaining", CType: "uint8_t", Offset: 30, Size: 1},
		}},
		decode: func(v view) Message {
			return SysStatus{
				Voltage:   v.num("voltage_battery"),
				Current:   v.num("current_battery"),
				Remaining: uint8(v.num("battery_remaining")),
			}
		},
		encode: func(w writer, m Message) {
			st := m.(SysStatus)
			w.num("voltage_battery", st.Voltage)
			w.num("current_battery", st.Current)
			w.num("battery_remaining", float64(st.Remaining))
		},
	},
	MsgGPSRawInt: {
		layout: Layout{ID: MsgGPSRawInt, Name: "GPS_RAW_INT", Fields: []Field{
			{Name: "eph", CType: "uint16_t", Offset: 22, Size: 2, Scale: 1e-2},
			{Name: "fix_type", CType: "uint8_t", Offset: 28, Size: 1},
			{Name: "satellites_visible", CType: "uint8_t", Offset: 29, Size: 1},
		}},
		decode: func(v view) Message {
			return GPSRawInt{
				HDOP:       v.num("eph"),
				FixType:    uint8(v.num("fix_type")),
				Satellites: uint8(v.num("satellites_visible")),
			}
		},
		encode: func(w writer, m Message) {
			gps := m.(GPSRawInt)
			w.num("eph", gps.HDOP)
			w.num("fix_type", float64(gps.FixType))
			w.num("satellites_visible", float64(gps.Satellites))
		},
	},
	MsgAttitude: {
		layout: Layout{ID: MsgAttitude, Name: "ATTITUDE", Fields: []Field{
			{Name: "roll", CType: "float", Offset: 6, Size: 4, Scale: radToDeg},
			{Name: "pitch", CType: "float", Offset: 10, Size: 4, Scale: radToDeg},
			{Name: "yaw", CType: "float", Offset: 14, Size: 4, Scale: radToDeg},
		}},
		decode: func(v view) Message {
			return Attitude{Roll: v.num("roll"), Pitch: v.num("pitch"), Yaw: v.num("yaw")}
		},
		encode: func(w writer, m Message) {
			att := m.(Attitude)
			w.num("roll", att.Roll)
			w.num("pitch", att.Pitch)
			w.num("yaw", att.Yaw)
		},
	},
	MsgGlobalPositionInt: {
		layout: Layout{ID: MsgGlobalPositionInt, Name: "GLOBAL_POSITION_INT", Fields: []Field{
			{Name: "lat", CType: "int32_t", Offset: 10, Size: 4, Scale: 1e-7},
			{Name: "lon", CType: "int32_t", Offset: 14, Size: 4, Scale: 1e-7},
			{Name: "alt", CType: "int32_t", Offset: 18, Size: 4, Scale: 1e-3},
			{Name: "relative_alt", CType: "int32_t", Offset: 22, Size: 4, Scale: 1e-3},
			{Name: "vx", CType: "int16_t", Offset: 26, Size: 2, Scale: 1e-2},
			{Name: "vy", CType: "int16_t", Offset: 28, Size: 2, Scale: 1e-2},
			{Name: "hdg", CType: "uint16_t", Offset: 32, Size: 2, Scale: 1e-2},
		}},
		decode: func(v view) Message {
			return GlobalPositionInt{
				Lat:         v.num("lat"),
				Lon:         v.num("lon"),
				Alt:         v.num("alt"),
				RelativeAlt: v.num("relative_alt"),
				VX:          v.num("vx"),
				VY:          v.num("vy"),
				Heading:     v.num("hdg"),
			}
		},
		encode: func(w writer, m Message) {
			pos := m.(GlobalPositionInt)
			w.num("lat", pos.Lat)
			w.num("lon", pos.Lon)
			w.num("alt", pos.Alt)
			w.num("relative_alt", pos.RelativeAlt)
			w.num("vx", pos.VX)
			w.num("vy", pos.VY)
			w.num("hdg", pos.Heading)
		},
	},
	MsgMissionCurrent: {
		layout: Layout{ID: MsgMissionCurrent, Name: "MISSION_CURRENT", Fields: []Field{
			{Name: "seq", CType: "uint16_t", Offset: 6, Size: 2},
		}},
		decode: func(v view) Message { return MissionCurrent{Seq: uint16(v.num("seq"))} },
		encode: func(w writer, m Message) { w.num("seq", float64(m.(MissionCurrent).Seq)) },
	},
	MsgMissionCount: {
		layout: Layout{ID: MsgMissionCount, Name: "MISSION_COUNT", Fields: []Field{
			{Name: "count", CType: "uint16_t", Offset: 6, Size: 2},
		}},
		decode: func(v view) Message { return MissionCount{Count: uint16(v.num("count"))} },
		encode: func(w writer, m Message) { w.num("count", float64(m.(MissionCount).Count)) },
	},
	MsgMissionItemInt: {
		layout: Layout{ID: MsgMissionItemInt, Name: "MISSION_ITEM_INT", Fields: []Field{
			{Name: "x", CType: "int32_t", Offset: 10, Size: 4, Scale: 1e-7},
			{Name: "y", CType: "int32_t", Offset: 14, Size: 4, Scale: 1e-7},
			{Name: "z", CType: "float", Offset: 18, Size: 4},
			{Name: "seq", CType: "uint16_t", Offset: 34, Size: 2},
			{Name: "command", CType: "uint16_t", Offset: 37, Size: 2},
		}},
		decode: func(v view) Message {
			return MissionItemInt{
				Seq:     uint16(v.num("seq")),
				Lat:     v.num("x"),
				Lon:     v.num("y"),
				Alt:     float32(v.num("z")),
				Command: uint16(v.num("command")),
			}
		},
		encode: func(w writer, m Message) {
			item := m.(MissionItemInt)
			w.num("x", item.Lat)
			w.num("y", item.Lon)
			w.num("z", float64(item.Alt))
			w.num("seq", float64(item.Seq))
			w.num("command", float64(item.Command))
		},
	},
	MsgVFRHUD: {
		layout: Layout{ID: MsgVFRHUD, Name: "VFR_HUD", Fields: []Field{
			{Name: "airspeed", CType: "float", Offset: 6, Size: 4},
			{Name: "groundspeed", CType: "float", Offset: 10, Size: 4},
			{Name: "alt", CType: "float", Offset: 14, Size: 4},
			{Name: "heading", CType: "int16_t", Offset: 18, Size: 2},
			{Name: "throttle", CType: "uint16_t", Offset: 20, Size: 2},
			{Name: "climb", CType: "float", Offset: 22, Size: 4},
		}},
		decode: func(v view) Message {
			return VFRHUD{
				Airspeed:    float32(v.num("airspeed")),
				Groundspeed: float32(v.num("groundspeed")),
				Alt:         float32(v.num("alt")),
				Heading:     int16(v.num("heading")),
				Throttle:    uint16(v.num("throttle")),
				ClimbRate:   float32(v.num("climb")),
			}
		},
		encode: func(w writer, m Message) {
			hud := m.(VFRHUD)
			w.num("airspeed", float64(hud.Airspeed))
			w.num("groundspeed", float64(hud.Groundspeed))
			w.num("alt", float64(hud.Alt))
			w.num("heading", float64(hud.Heading))
			w.num("throttle", float64(hud.Throttle))
			w.num("climb", float64(hud.ClimbRate))
		},
	},
	MsgStatusText: {
		layout: Layout{ID: MsgStatusText, Name: "STATUSTEXT", Fields: []Field{
			{Name: "severity", CType: "uint8_t", Offset: 6, Size: 1},
			{Name: "text", CType: "char", Offset: 7, Size: 50},
		}},
		decode: func(v view) Message {
			return StatusText{Severity: uint8(v.num("severity")), Text: v.text("text")}
		},
		encode: func(w writer, m Message) {
			st := m.(StatusText)
			w.num("severity", float64(st.Severity))
			w.text("text", st.Text)
		},
	},
}

// Lookup returns the layout registered for id.
func Lookup(id MessageID) (Layout, bool) {
	c, ok := registry[id]
	if !ok {
		return Layout{}, false
	}
	return c.layout, true
}

// Supported lists registered layouts ordered by id.
func Supported() []Layout {
	out := make([]Layout, 0, len(registry))
	for _, c := range registry {
		out = append(out, c.layout)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Decode reads the message id and decodes the payload for it. Frames with an
// id that has no layout come back as RawMessage with a nil error.
func Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	id := MessageID(frame[MessageIDOffset])
	c, ok := registry[id]
	if !ok {
		return RawMessage{ID: id, Payload: append([]byte(nil), frame[HeaderLen:]...)}, nil
	}
	if need := c.layout.MinLen(); len(frame) < need {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncated, c.layout.Name, need, len(frame))
	}
	return c.decode(view{layout: &c.layout, frame: frame}), nil
}

// ParseText converts a NUL-padded text field into a trimmed UTF-8 string.
func ParseText(payload []byte) string {
	if idx := bytes.IndexByte(payload, 0x00); idx >= 0 {
		payload = payload[:idx]
	}
	s := string(payload)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return strings.TrimSpace(s)
}
