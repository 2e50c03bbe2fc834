package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	// MessageIDOffset is where every frame carries its message id.
	MessageIDOffset = 5
	// HeaderLen is the number of bytes preceding the first payload byte.
	HeaderLen = MessageIDOffset + 1

	radToDeg = 180 / math.Pi
)

// Field describes one little-endian value at a fixed frame offset. The raw
// integer or float is multiplied by Scale; a zero Scale means 1.
//
// CType "char" marks a NUL-padded text field whose Size is the maximum
// length; it may be cut short by the end of the frame.
type Field struct {
	Name   string
	CType  string
	Offset int
	Size   int
	Scale  float64
}

// Layout is the fixed offset table for one message id.
type Layout struct {
	ID     MessageID
	Name   string
	Fields []Field
}

// MinLen is the shortest frame the layout can be decoded from.
func (l Layout) MinLen() int {
	n := HeaderLen
	for _, f := range l.Fields {
		end := f.Offset + f.Size
		if f.CType == "char" {
			end = f.Offset
		}
		n = max(n, end)
	}
	return n
}

// FullLen is the frame length (without checksum) when every text field
// is present at its maximum size.
func (l Layout) FullLen() int {
	n := HeaderLen
	for _, f := range l.Fields {
		n = max(n, f.Offset+f.Size)
	}
	return n
}

func (l Layout) field(name string) Field {
	for _, f := range l.Fields {
		if f.Name == name {
			return f
		}
	}
	panic(fmt.Sprintf("protocol: %s has no field %q", l.Name, name))
}

// Validate checks that every field has a known type, a matching size and
// lives inside the payload area.
func (l Layout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layout %d has no name", l.ID)
	}
	if len(l.Fields) == 0 {
		return fmt.Errorf("layout %s requires at least one field", l.Name)
	}
	seen := make(map[string]struct{}, len(l.Fields))
	for _, f := range l.Fields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("layout %s: duplicate field %s", l.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Offset < HeaderLen {
			return fmt.Errorf("layout %s: field %s overlaps header at offset %d", l.Name, f.Name, f.Offset)
		}
		if f.CType == "char" {
			if f.Size <= 0 {
				return fmt.Errorf("layout %s: text field %s has no size", l.Name, f.Name)
			}
			continue
		}
		size, ok := typeSize(f.CType)
		if !ok {
			return fmt.Errorf("layout %s: unsupported c type %q", l.Name, f.CType)
		}
		if f.Size != size {
			return fmt.Errorf("layout %s: field %s size mismatch: got %d want %d", l.Name, f.Name, f.Size, size)
		}
	}
	return nil
}

// view reads named fields out of a frame already checked against MinLen.
type view struct {
	layout *Layout
	frame  []byte
}

func (v view) num(name string) float64 {
	f := v.layout.field(name)
	raw := decodeValue(f.CType, v.frame[f.Offset:f.Offset+f.Size])
	if f.Scale != 0 {
		raw *= f.Scale
	}
	return raw
}

func (v view) text(name string) string {
	f := v.layout.field(name)
	if f.Offset >= len(v.frame) {
		return ""
	}
	end := min(f.Offset+f.Size, len(v.frame))
	return ParseText(v.frame[f.Offset:end])
}

// writer fills named fields of a frame sized to the layout's FullLen.
type writer struct {
	layout *Layout
	frame  []byte
}

func (w writer) num(name string, value float64) {
	f := w.layout.field(name)
	if f.Scale != 0 {
		value /= f.Scale
	}
	encodeValue(f.CType, w.frame[f.Offset:f.Offset+f.Size], value)
}

func (w writer) text(name string, s string) {
	f := w.layout.field(name)
	copy(w.frame[f.Offset:f.Offset+f.Size], s)
}

func decodeValue(ctype string, data []byte) float64 {
	switch ctype {
	case "float":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	case "int8_t":
		return float64(int8(data[0]))
	case "uint8_t":
		return float64(data[0])
	case "int16_t":
		return float64(int16(binary.LittleEndian.Uint16(data)))
	case "uint16_t":
		return float64(binary.LittleEndian.Uint16(data))
	case "int32_t":
		return float64(int32(binary.LittleEndian.Uint32(data)))
	case "uint32_t":
		return float64(binary.LittleEndian.Uint32(data))
	default:
		return 0
	}
}

func encodeValue(ctype string, data []byte, value float64) {
	switch ctype {
	case "float":
		binary.LittleEndian.PutUint32(data, math.Float32bits(float32(value)))
	case "int8_t":
		data[0] = byte(int8(math.Round(value)))
	case "uint8_t":
		data[0] = uint8(math.Round(value))
	case "int16_t":
		binary.LittleEndian.PutUint16(data, uint16(int16(math.Round(value))))
	case "uint16_t":
		binary.LittleEndian.PutUint16(data, uint16(math.Round(value)))
	case "int32_t":
		binary.LittleEndian.PutUint32(data, uint32(int32(math.Round(value))))
	case "uint32_t":
		binary.LittleEndian.PutUint32(data, uint32(math.Round(value)))
	}
}

func typeSize(ctype string) (int, bool) {
	switch strings.TrimSpace(ctype) {
	case "float":
		return 4, true
	case "int8_t", "uint8_t":
		return 1, true
	case "int16_t", "uint16_t":
		return 2, true
	case "int32_t", "uint32_t":
		return 4, true
	default:
		return 0, false
	}
}
