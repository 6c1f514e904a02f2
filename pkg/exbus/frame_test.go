package exbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	telemetryRequest = []byte{0x3D, 0x01, 0x08, 0x42, 0x3A, 0x00, 0x8F, 0xE4}
	jetiboxRequest   = []byte{0x3D, 0x01, 0x09, 0x88, 0x3B, 0x01, 0xF0, 0xA3, 0x24}
	telemetryAnswer  = []byte{
		0x3B, 0x01, 0x20, 0x08, 0x3A, 0x18,
		0x9F, 0x56, 0x00, 0xA4, 0x51, 0x55, 0xEE, 0x11, 0x30, 0x20, 0x21, 0x00,
		0x40, 0x34, 0xA3, 0x28, 0x00, 0x41, 0x00, 0x00, 0x51, 0x18, 0x00, 0x09,
		0x91, 0xD6,
	}
)

func jetiboxAnswer() []byte {
	b := append([]byte{0x3B, 0x01, 0x28, 0x88, 0x3B, 0x20}, "Central Box 100>   4.8V  1040mAh"...)
	return append(b, 0xEB, 0xDE)
}

func channelFrame(t *testing.T) []byte {
	channels := make([]uint16, 16)
	for n := range channels {
		channels[n] = 0x1F82
	}
	b, err := EncodeChannels(0x06, channels)
	require.NoError(t, err)
	return b
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		raw      []byte
		kind     Kind
		packetID byte
	}{
		{"channels", nil, KindChannelData, 0x06},
		{"telemetry request", telemetryRequest, KindTelemetryRequest, 0x42},
		{"jetibox request", jetiboxRequest, KindJetiBoxRequest, 0x88},
		{"telemetry answer", telemetryAnswer, KindTelemetryResponse, 0x08},
		{"jetibox answer", jetiboxAnswer(), KindJetiBoxResponse, 0x88},
		{"unknown", []byte{0x3D, 0x01, 0x08, 0x01, 0x55, 0x00, 0x00, 0xEB}, KindUnknown, 0x01},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := tc.raw
			if raw == nil {
				raw = channelFrame(t)
			}
			f, err := Classify(raw)
			require.NoError(t, err)
			require.Equal(t, tc.kind, f.Kind)
			require.Equal(t, tc.packetID, f.PacketID)
			require.Equal(t, len(raw), f.DeclaredLength)
			require.True(t, f.ChecksumValid)
		})
	}
}

func TestClassifyErrors(t *testing.T) {
	_, err := Classify([]byte{0x3D, 0x01, 0x08})
	require.IsType(t, &FramingError{}, err)

	_, err = Classify([]byte{0x3D, 0x01, 0x09, 0x42, 0x3A, 0x00, 0x8F, 0xE4})
	require.IsType(t, &FramingError{}, err)

	bad := append([]byte{}, telemetryRequest...)
	bad[3] = 0x43
	_, err = Classify(bad)
	var csErr *ChecksumError
	require.ErrorAs(t, err, &csErr)
	require.Equal(t, uint16(0xE48F), csErr.Expected)

	overrun, err := EncodeFrame(HeaderRequest, ModeAnswer, 1, DataIDTelemetry, []byte{0x01})
	require.NoError(t, err)
	overrun[5] = 0x05
	_, err = Classify(AppendChecksum(overrun[:len(overrun)-2]))
	require.IsType(t, &FramingError{}, err)
}

func TestFrameChannels(t *testing.T) {
	f, err := Classify(channelFrame(t))
	require.NoError(t, err)
	require.Equal(t, uint16(0xE24F), uint16(f.Raw[38])|uint16(f.Raw[39])<<8)
	channels := f.Channels()
	require.Len(t, channels, 16)
	for _, v := range channels {
		require.Equal(t, uint16(8066), v)
	}
	require.InDelta(t, 1.00825, ChannelMillis(channels[0]), 1e-9)

	f, err = Classify(telemetryRequest)
	require.NoError(t, err)
	require.Nil(t, f.Channels())
}

func TestFrameButtons(t *testing.T) {
	f, err := Classify(jetiboxRequest)
	require.NoError(t, err)
	require.Equal(t, byte(0xF0), f.Buttons())
	require.Equal(t, []byte{0xF0}, f.Payload())

	f, err = Classify(EncodeJetiBoxRequest(0x10, 0xE0))
	require.NoError(t, err)
	require.Equal(t, byte(0xE0), f.Buttons())
}

func TestEncode(t *testing.T) {
	require.Equal(t, telemetryRequest, EncodeTelemetryRequest(0x42))
	require.Equal(t, jetiboxRequest, EncodeJetiBoxRequest(0x88, 0xF0))

	b, err := EncodeResponse(0x88, DataIDJetiBox, []byte("Central Box 100>   4.8V  1040mAh"))
	require.NoError(t, err)
	require.Equal(t, jetiboxAnswer(), b)

	b, err = EncodeResponse(0x08, DataIDTelemetry, telemetryAnswer[6:30])
	require.NoError(t, err)
	require.Equal(t, telemetryAnswer, b)

	_, err = EncodeResponse(0x01, DataIDTelemetry, make([]byte, MaxPayloadSize+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}
