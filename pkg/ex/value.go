package ex

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidID indicates a telemetry ID outside 1..15.
	ErrInvalidID = errors.New("telemetry id out of range")
	// ErrOutOfRange indicates a value can't be represented by its type.
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnknownType indicates an unsupported data type.
	ErrUnknownType = errors.New("unknown data type")
	// ErrInvalidPrecision indicates more than 3 decimal places.
	ErrInvalidPrecision = errors.New("precision out of range")
	// ErrTruncated indicates the input ends in the middle of an item.
	ErrTruncated = errors.New("truncated")
)

// DataType is the EX encoding of a value.
type DataType byte

// Data types.
const (
	Int6      DataType = 0
	Int14     DataType = 1
	Int22     DataType = 4
	Int22Time DataType = 5
	Int30     DataType = 8
	Int30GPS  DataType = 9
)

// MaxID is the largest telemetry ID in a data packet.
const MaxID = 15

// Size is the number of bytes of an encoded value, 0 for unknown types.
func (t DataType) Size() int {
	switch t {
	case Int6:
		return 1
	case Int14:
		return 2
	case Int22, Int22Time:
		return 3
	case Int30, Int30GPS:
		return 4
	}
	return 0
}

var dataTypeNames = map[DataType]string{
	Int6:      "int6",
	Int14:     "int14",
	Int22:     "int22",
	Int22Time: "time",
	Int30:     "int30",
	Int30GPS:  "gps",
}

// String implements fmt.Stringer.
func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", byte(t))
}

// ParseDataType parses the name returned by String.
func ParseDataType(name string) (DataType, error) {
	for t, n := range dataTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Value is one telemetry value of a data packet.
//
// Number is scaled by 10^Precision and rounded for the integer types.
// Int22Time takes seconds since midnight. Int30GPS takes decimal degrees,
// Longitude selects east/west instead of north/south.
type Value struct {
	ID        uint8
	Type      DataType
	Precision uint8
	Number    float64
	Longitude bool
}

// Scaled returns Number as the integer transmitted for the integer types.
func (v Value) Scaled() int64 {
	return int64(math.Round(v.Number * math.Pow10(int(v.Precision))))
}

// AppendValue appends the encoded value.
func AppendValue(dst []byte, v Value) ([]byte, error) {
	if v.ID == 0 || v.ID > MaxID {
		return dst, ErrInvalidID
	}
	size := v.Type.Size()
	if size == 0 {
		return dst, ErrUnknownType
	}
	var raw [4]byte
	switch v.Type {
	case Int22Time:
		if v.Number < 0 || v.Number >= 86400 {
			return dst, ErrOutOfRange
		}
		secs := int(v.Number)
		raw[0], raw[1], raw[2] = byte(secs%60), byte(secs/60%60), byte(secs/3600)
	case Int30GPS:
		if math.Abs(v.Number) > 180 {
			return dst, ErrOutOfRange
		}
		raw = EncodeGPS(v.Number, v.Longitude)
	default:
		if v.Precision > 3 {
			return dst, ErrInvalidPrecision
		}
		scaled := v.Scaled()
		neg := scaled < 0
		if neg {
			scaled = -scaled
		}
		if scaled > int64(1)<<uint(size*8-3)-1 {
			return dst, ErrOutOfRange
		}
		for n := 0; n < size; n++ {
			raw[n] = byte(scaled >> uint(n*8))
		}
		raw[size-1] |= v.Precision << 5
		if neg {
			raw[size-1] |= 0x80
		}
	}
	dst = append(dst, v.ID<<4|byte(v.Type))
	return append(dst, raw[:size]...), nil
}

// DecodeValue decodes one value from the start of b and returns the
// number of bytes consumed.
func DecodeValue(b []byte) (v Value, n int, err error) {
	if len(b) == 0 {
		return v, 0, ErrTruncated
	}
	v.ID, v.Type = b[0]>>4, DataType(b[0]&0x0F)
	size := v.Type.Size()
	if size == 0 {
		return v, 0, fmt.Errorf("%w: %d", ErrUnknownType, b[0]&0x0F)
	}
	if len(b) < 1+size {
		return v, 0, ErrTruncated
	}
	raw := b[1 : 1+size]
	switch v.Type {
	case Int22Time:
		v.Number = float64(int(raw[2]&0x1F)*3600 + int(raw[1])*60 + int(raw[0]))
	case Int30GPS:
		v.Number, v.Longitude = DecodeGPS(raw)
	default:
		last := raw[size-1]
		v.Precision = (last >> 5) & 0x03
		var mag int64
		for i := 0; i < size; i++ {
			octet := raw[i]
			if i == size-1 {
				octet &= 0x1F
			}
			mag |= int64(octet) << uint(i*8)
		}
		if last&0x80 != 0 {
			mag = -mag
		}
		v.Number = float64(mag) / math.Pow10(int(v.Precision))
	}
	return v, 1 + size, nil
}

// EncodeGPS encodes decimal degrees as degrees and thousandths of minutes.
func EncodeGPS(degrees float64, longitude bool) (raw [4]byte) {
	abs := math.Abs(degrees)
	deg := int(abs)
	minutes := int(math.Round((abs - float64(deg)) * 60000))
	if minutes >= 60000 {
		deg, minutes = deg+1, 0
	}
	raw[0], raw[1] = byte(minutes), byte(minutes>>8)
	raw[2] = byte(deg)
	raw[3] = byte(deg>>8) & 0x01
	if longitude {
		raw[3] |= 0x20
	}
	if degrees < 0 {
		raw[3] |= 0x40
	}
	return
}

// DecodeGPS decodes what EncodeGPS produced.
func DecodeGPS(raw []byte) (degrees float64, longitude bool) {
	minutes := int(raw[0]) | int(raw[1])<<8
	deg := int(raw[2]) | int(raw[3]&0x01)<<8
	degrees = float64(deg) + float64(minutes)/60000
	if raw[3]&0x40 != 0 {
		degrees = -degrees
	}
	return degrees, raw[3]&0x20 != 0
}
