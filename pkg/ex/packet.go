package ex

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sigurn/crc8"
)

// PacketStart is the first byte of every EX packet.
const PacketStart byte = 0x9F

// Packet geometry.
const (
	// MaxPacketSize is the largest packet including start byte and CRC-8.
	MaxPacketSize = 29
	// PacketOverhead counts the bytes around the body.
	PacketOverhead = 8
	// MaxBodySize is the largest body which fits MaxPacketSize.
	MaxBodySize = MaxPacketSize - PacketOverhead
	// MaxLabelSize and MaxUnitSize are limited by the text length byte.
	MaxLabelSize = 31
	MaxUnitSize  = 7
	// MaxMessageSize is limited by the message length bits.
	MaxMessageSize = 31
)

var (
	// ErrPacketTooLarge indicates the body doesn't fit one packet.
	ErrPacketTooLarge = errors.New("packet too large")
	// ErrTextTooLong indicates a label, unit or message is too long.
	ErrTextTooLong = errors.New("text too long")
	// ErrInvalidPacket indicates a malformed packet.
	ErrInvalidPacket = errors.New("invalid packet")
)

// PacketType is encoded in the top 2 bits of the second byte.
type PacketType byte

// Packet types.
const (
	TypeText    PacketType = 0
	TypeData    PacketType = 1
	TypeMessage PacketType = 2
)

// String implements fmt.Stringer.
func (t PacketType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeData:
		return "data"
	case TypeMessage:
		return "message"
	}
	return fmt.Sprintf("packet-type(%d)", byte(t))
}

// MessageClass is the severity of a message packet.
type MessageClass byte

// Message classes.
const (
	ClassBasic MessageClass = iota
	ClassStatus
	ClassWarning
	ClassRecommendation
	ClassEvent
	ClassAlarm
	ClassInfo
)

// Serial identifies the sensor on the bus.
type Serial struct {
	Manufacturer uint16
	Device       uint16
}

// String implements fmt.Stringer.
func (s Serial) String() string {
	return fmt.Sprintf("%04x:%04x", s.Manufacturer, s.Device)
}

var crcTable = crc8.MakeTable(crc8.CRC8)

// CRC8 calculates the EX packet checksum.
func CRC8(b []byte) byte {
	return crc8.Checksum(b, crcTable)
}

func buildPacket(s Serial, t PacketType, body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, ErrPacketTooLarge
	}
	b := make([]byte, 0, PacketOverhead+len(body))
	b = append(b, PacketStart, byte(t)<<6|byte(len(body)+PacketOverhead-2))
	b = binary.LittleEndian.AppendUint16(b, s.Manufacturer)
	b = binary.LittleEndian.AppendUint16(b, s.Device)
	b = append(b, 0x00)
	b = append(b, body...)
	return append(b, CRC8(b[1:])), nil
}

// DataPacket builds a data packet carrying values.
func DataPacket(s Serial, values ...Value) ([]byte, error) {
	var body []byte
	for _, v := range values {
		var err error
		if body, err = AppendValue(body, v); err != nil {
			return nil, fmt.Errorf("value %d: %w", v.ID, err)
		}
	}
	return buildPacket(s, TypeData, body)
}

// TextPacket builds a text packet announcing the label and unit of a
// value. ID 0 announces the device name as label.
func TextPacket(s Serial, id uint8, label, unit string) ([]byte, error) {
	l, u := Latin1(label), Latin1(unit)
	if len(l) > MaxLabelSize || len(u) > MaxUnitSize {
		return nil, ErrTextTooLong
	}
	body := make([]byte, 0, 2+len(l)+len(u))
	body = append(body, id, byte(len(l))<<3|byte(len(u)))
	body = append(body, l...)
	body = append(body, u...)
	return buildPacket(s, TypeText, body)
}

// MessagePacket builds a message packet shown by the transmitter.
func MessagePacket(s Serial, class MessageClass, text string) ([]byte, error) {
	t := Latin1(text)
	if len(t) > MaxMessageSize {
		return nil, ErrTextTooLong
	}
	body := make([]byte, 0, 2+len(t))
	body = append(body, 0x00, byte(class)<<5|byte(len(t)))
	body = append(body, t...)
	return buildPacket(s, TypeMessage, body)
}

// Latin1 converts s to ISO 8859-1, replacing other runes with '?'.
func Latin1(s string) []byte {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			r = '?'
		}
		b = append(b, byte(r))
	}
	return b
}

func fromLatin1(b []byte) string {
	r := make([]rune, len(b))
	for n, c := range b {
		r[n] = rune(c)
	}
	return string(r)
}

// Label is the content of a text packet.
type Label struct {
	ID   uint8
	Name string
	Unit string
}

// Packet is a decoded EX packet.
type Packet struct {
	Type    PacketType
	Serial  Serial
	Values  []Value
	Label   *Label
	Class   MessageClass
	Message string
}

// ParsePacket decodes a complete packet.
func ParsePacket(b []byte) (*Packet, error) {
	if len(b) < PacketOverhead || b[0]&0x0F != 0x0F {
		return nil, ErrInvalidPacket
	}
	size := int(b[1]&0x3F) + 2
	if size > len(b) || size < PacketOverhead {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPacket, size)
	}
	b = b[:size]
	if crc := CRC8(b[1 : size-1]); crc != b[size-1] {
		return nil, fmt.Errorf("%w: crc %02x, calculated %02x", ErrInvalidPacket, b[size-1], crc)
	}
	p := &Packet{
		Type: PacketType(b[1] >> 6),
		Serial: Serial{
			Manufacturer: binary.LittleEndian.Uint16(b[2:]),
			Device:       binary.LittleEndian.Uint16(b[4:]),
		},
	}
	body := b[PacketOverhead-2 : size-1]
	switch p.Type {
	case TypeData:
		for len(body) > 0 {
			v, n, err := DecodeValue(body)
			if err != nil {
				return nil, err
			}
			p.Values = append(p.Values, v)
			body = body[n:]
		}
	case TypeText:
		if len(body) < 2 {
			return nil, ErrTruncated
		}
		ln, lu := int(body[1]>>3), int(body[1]&0x07)
		if len(body) < 2+ln+lu {
			return nil, ErrTruncated
		}
		p.Label = &Label{
			ID:   body[0],
			Name: fromLatin1(body[2 : 2+ln]),
			Unit: fromLatin1(body[2+ln : 2+ln+lu]),
		}
	case TypeMessage:
		if len(body) < 2 {
			return nil, ErrTruncated
		}
		n := int(body[1] & 0x1F)
		if len(body) < 2+n {
			return nil, ErrTruncated
		}
		p.Class, p.Message = MessageClass(body[1]>>5), fromLatin1(body[2:2+n])
	default:
		return nil, fmt.Errorf("%w: type %d", ErrInvalidPacket, p.Type)
	}
	return p, nil
}
