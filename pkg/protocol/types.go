package protocol

// MessageID is the wire identifier found at MessageIDOffset in every frame.
type MessageID uint8

const (
	MsgHeartbeat         MessageID = 0
	MsgSysStatus         MessageID = 1
	MsgGPSRawInt         MessageID = 24
	MsgAttitude          MessageID = 30
	MsgGlobalPositionInt MessageID = 33
	MsgMissionCurrent    MessageID = 42
	MsgMissionCount      MessageID = 44
	MsgMissionItemInt    MessageID = 73
	MsgVFRHUD            MessageID = 74
	MsgStatusText        MessageID = 253
)

// Message is a decoded frame payload. Values are already scaled to
// physical units (degrees, metres, volts, amps, m/s).
type Message interface {
	MessageID() MessageID
}

// RawMessage preserves frames whose id has no layout.
type RawMessage struct {
	ID      MessageID
	Payload []byte
}

func (m RawMessage) MessageID() MessageID { return m.ID }

// Heartbeat armed flag lives in base_mode.
const baseModeSafetyArmed = 0x80

type Heartbeat struct {
	CustomMode   uint32
	BaseMode     uint8
	SystemStatus uint8
}

func (Heartbeat) MessageID() MessageID { return MsgHeartbeat }

// Armed reports whether the safety-armed bit of base_mode is set.
func (h Heartbeat) Armed() bool { return h.BaseMode&baseModeSafetyArmed != 0 }

type SysStatus struct {
	Voltage   float64 // V
	Current   float64 // A
	Remaining uint8   // percent
}

func (SysStatus) MessageID() MessageID { return MsgSysStatus }

type GPSRawInt struct {
	HDOP       float64
	FixType    uint8
	Satellites uint8
}

func (GPSRawInt) MessageID() MessageID { return MsgGPSRawInt }

// Attitude angles are in degrees.
type Attitude struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

func (Attitude) MessageID() MessageID { return MsgAttitude }

type GlobalPositionInt struct {
	Lat         float64
	Lon         float64
	Alt         float64 // m MSL
	RelativeAlt float64 // m above home
	VX          float64 // m/s north
	VY          float64 // m/s east
	Heading     float64 // deg
}

func (GlobalPositionInt) MessageID() MessageID { return MsgGlobalPositionInt }

type MissionCurrent struct {
	Seq uint16
}

func (MissionCurrent) MessageID() MessageID { return MsgMissionCurrent }

type MissionCount struct {
	Count uint16
}

func (MissionCount) MessageID() MessageID { return MsgMissionCount }

type MissionItemInt struct {
	Seq     uint16
	Lat     float64
	Lon     float64
	Alt     float32
	Command uint16
}

func (MissionItemInt) MessageID() MessageID { return MsgMissionItemInt }

type VFRHUD struct {
	Airspeed    float32
	Groundspeed float32
	Alt         float32
	Heading     int16
	Throttle    uint16
	ClimbRate   float32
}

func (VFRHUD) MessageID() MessageID { return MsgVFRHUD }

type StatusText struct {
	Severity uint8
	Text     string
}

func (StatusText) MessageID() MessageID { return MsgStatusText }
