package protocol

import "fmt"

const (
	frameStart  = 0xFE
	checksumLen = 2
)

// crcExtra seeds the checksum per message id the same way autopilots do.
var crcExtra = map[MessageID]byte{
	MsgHeartbeat:         50,
	MsgSysStatus:         124,
	MsgGPSRawInt:         24,
	MsgAttitude:          39,
	MsgGlobalPositionInt: 104,
	MsgMissionCurrent:    28,
	MsgMissionCount:      221,
	MsgMissionItemInt:    38,
	MsgVFRHUD:            20,
	MsgStatusText:        83,
}

// Header carries the link-level fields written ahead of the message id.
type Header struct {
	Seq         uint8
	SystemID    uint8
	ComponentID uint8
}

// Encode builds a frame for msg using the same layout table Decode reads.
// Only ids with a registered layout can be encoded.
func Encode(h Header, msg Message) ([]byte, error) {
	c, ok := registry[msg.MessageID()]
	if !ok {
		return nil, fmt.Errorf("no layout for message id %d", msg.MessageID())
	}

	n := c.layout.FullLen()
	frame := make([]byte, n+checksumLen)
	frame[0] = frameStart
	frame[1] = byte(n - HeaderLen)
	frame[2] = h.Seq
	frame[3] = h.SystemID
	frame[4] = h.ComponentID
	frame[MessageIDOffset] = byte(msg.MessageID())

	c.encode(writer{layout: &c.layout, frame: frame[:n]}, msg)

	crc := crcX25(frame[1:n])
	crc = crcAccumulate(crc, crcExtra[msg.MessageID()])
	frame[n] = byte(crc)
	frame[n+1] = byte(crc >> 8)
	return frame, nil
}

func crcX25(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = crcAccumulate(crc, b)
	}
	return crc
}

func crcAccumulate(crc uint16, b byte) uint16 {
	tmp := b ^ byte(crc)
	tmp ^= tmp << 4
	return (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}
