package exbus

import (
	"encoding/binary"
	"fmt"
)

// Header bytes.
const (
	HeaderChannels byte = 0x3E
	HeaderRequest  byte = 0x3D
	HeaderAnswer   byte = 0x3B
)

// Second header byte.
const (
	ModeNoAnswer byte = 0x03
	ModeAnswer   byte = 0x01
)

// Data identifiers.
const (
	DataIDChannels  byte = 0x31
	DataIDTelemetry byte = 0x3A
	DataIDJetiBox   byte = 0x3B
)

// Frame geometry.
const (
	HeaderSize      = 6
	ChecksumSize    = 2
	MinFrameSize    = HeaderSize + ChecksumSize
	MaxFrameSize    = 64
	MaxPayloadSize  = MaxFrameSize - MinFrameSize
	JetiBoxTextSize = 32
)

// Kind classifies a frame.
type Kind int

// Frame kinds.
const (
	KindUnknown Kind = iota
	KindChannelData
	KindTelemetryRequest
	KindJetiBoxRequest
	KindTelemetryResponse
	KindJetiBoxResponse
)

var kindNames = [...]string{
	KindUnknown:           "unknown",
	KindChannelData:       "channels",
	KindTelemetryRequest:  "telemetry-request",
	KindJetiBoxRequest:    "jetibox-request",
	KindTelemetryResponse: "telemetry-response",
	KindJetiBoxResponse:   "jetibox-response",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsRequest tells if the master expects an answer to the frame.
func (k Kind) IsRequest() bool {
	return k == KindTelemetryRequest || k == KindJetiBoxRequest
}

// Frame is a complete, checksum-valid Ex Bus frame.
type Frame struct {
	Raw            []byte
	Kind           Kind
	DeclaredLength int
	ChecksumValid  bool
	PacketID       byte
	DataID         byte
}

// Classify validates a complete candidate frame and determines its kind.
// A frame failing validation is reported as *FramingError or *ChecksumError
// and never decoded. The returned frame references raw.
func Classify(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameSize || len(raw) > MaxFrameSize {
		return nil, &FramingError{Length: len(raw), Reason: "size out of range"}
	}
	declared := int(raw[2])
	if declared != len(raw) {
		return nil, &FramingError{Length: declared, Reason: "declared length mismatch"}
	}
	if expected, actual, ok := checkFrame(raw); !ok {
		return nil, &ChecksumError{Expected: expected, Actual: actual}
	}
	if HeaderSize+int(raw[5]) > len(raw)-ChecksumSize {
		return nil, &FramingError{Length: declared, Reason: "data block overruns frame"}
	}
	return &Frame{
		Raw:            raw,
		Kind:           kindOf(raw[0], raw[1], raw[4]),
		DeclaredLength: declared,
		ChecksumValid:  true,
		PacketID:       raw[3],
		DataID:         raw[4],
	}, nil
}

func kindOf(header, mode, dataID byte) Kind {
	switch {
	case header == HeaderChannels && mode == ModeNoAnswer && dataID == DataIDChannels:
		return KindChannelData
	case header == HeaderRequest && mode == ModeAnswer && dataID == DataIDTelemetry:
		return KindTelemetryRequest
	case header == HeaderRequest && mode == ModeAnswer && dataID == DataIDJetiBox:
		return KindJetiBoxRequest
	case header == HeaderAnswer && mode == ModeAnswer && dataID == DataIDTelemetry:
		return KindTelemetryResponse
	case header == HeaderAnswer && mode == ModeAnswer && dataID == DataIDJetiBox:
		return KindJetiBoxResponse
	}
	return KindUnknown
}

// Payload returns the data block.
func (f *Frame) Payload() []byte {
	return f.Raw[HeaderSize : HeaderSize+int(f.Raw[5])]
}

// Channels decodes channel values in 1/8 µs units.
// It returns nil if the frame doesn't carry channel data.
func (f *Frame) Channels() []uint16 {
	if f.Kind != KindChannelData {
		return nil
	}
	data := f.Payload()
	channels := make([]uint16, len(data)/2)
	for n := range channels {
		channels[n] = binary.LittleEndian.Uint16(data[n*2:])
	}
	return channels
}

// Buttons returns the JetiBox button byte (0bLDUR0000, a cleared bit
// means pressed). Frames without the byte report no button pressed.
func (f *Frame) Buttons() byte {
	if f.Kind == KindJetiBoxRequest {
		if data := f.Payload(); len(data) > 0 {
			return data[0]
		}
	}
	return 0xF0
}

// String implements fmt.Stringer.
func (f *Frame) String() string {
	return fmt.Sprintf("%s id=%02x len=%d % x", f.Kind, f.PacketID, f.DeclaredLength, f.Payload())
}

// ChannelMillis converts a channel value to milliseconds.
func ChannelMillis(v uint16) float64 {
	return float64(v) / 8000
}

// EncodeFrame builds a frame with checksum.
func EncodeFrame(header, mode, packetID, dataID byte, payload []byte) ([]byte, error) {
	size := MinFrameSize + len(payload)
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	b := make([]byte, 0, size)
	b = append(b, header, mode, byte(size), packetID, dataID, byte(len(payload)))
	b = append(b, payload...)
	return AppendChecksum(b), nil
}

// EncodeResponse builds the answer to a request with the given packet ID.
func EncodeResponse(packetID, dataID byte, payload []byte) ([]byte, error) {
	return EncodeFrame(HeaderAnswer, ModeAnswer, packetID, dataID, payload)
}

// EncodeTelemetryRequest builds a master telemetry request.
func EncodeTelemetryRequest(packetID byte) []byte {
	b, _ := EncodeFrame(HeaderRequest, ModeAnswer, packetID, DataIDTelemetry, nil)
	return b
}

// EncodeJetiBoxRequest builds a master JetiBox request.
func EncodeJetiBoxRequest(packetID, buttons byte) []byte {
	b, _ := EncodeFrame(HeaderRequest, ModeAnswer, packetID, DataIDJetiBox, []byte{buttons})
	return b
}

// EncodeChannels builds a master channel data frame.
func EncodeChannels(packetID byte, channels []uint16) ([]byte, error) {
	payload := make([]byte, len(channels)*2)
	for n, v := range channels {
		binary.LittleEndian.PutUint16(payload[n*2:], v)
	}
	return EncodeFrame(HeaderChannels, ModeNoAnswer, packetID, DataIDChannels, payload)
}
