package capture

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/exbus.go/pkg/exbus"
)

func TestRecordAndRead(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	rec, err := NewRecorder(w, 16)
	require.NoError(t, err)

	at := time.Date(2020, 1, 1, 0, 0, 0, 1000, time.UTC)
	request := exbus.EncodeTelemetryRequest(0x42)
	rec.CaptureReceived(at, request)
	rec.CaptureSent(at.Add(time.Millisecond), []byte{0x3B, 0x01})
	request[0] = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, rec.Run(ctx), context.Canceled)
	require.Equal(t, uint64(2), rec.Written())

	r := NewReader(&buf)
	first, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, Received, first.Dir)
	require.True(t, at.Equal(first.Time))
	require.Equal(t, exbus.EncodeTelemetryRequest(0x42), first.Data)

	second, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, Sent, second.Dir)
	require.Equal(t, []byte{0x3B, 0x01}, second.Data)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestRecorderDropsOldest(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, 2)
	require.NoError(t, err)
	now := time.Now()
	for n := byte(1); n <= 4; n++ {
		rec.CaptureReceived(now, []byte{n})
	}
	require.Equal(t, uint64(2), rec.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	r := NewReader(&buf)
	var data []byte
	for {
		record, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data = append(data, record.Data...)
	}
	require.Equal(t, []byte{3, 4}, data)
}

func TestDirectionString(t *testing.T) {
	require.Equal(t, "rx", Received.String())
	require.Equal(t, "tx", Sent.String())
}

func TestReplay(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, 16)
	require.NoError(t, err)

	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	channels, err := exbus.EncodeChannels(0x31, []uint16{8000, 12000})
	require.NoError(t, err)
	request := exbus.EncodeTelemetryRequest(0x42)
	corrupted := append([]byte(nil), request...)
	corrupted[len(corrupted)-1] ^= 0x01
	response, err := exbus.EncodeResponse(0x42, exbus.DataIDTelemetry, []byte{1, 2})
	require.NoError(t, err)

	rec.CaptureReceived(at, channels)
	rec.CaptureReceived(at.Add(time.Millisecond), request[:3])
	rec.CaptureReceived(at.Add(2*time.Millisecond), request[3:])
	rec.CaptureSent(at.Add(3*time.Millisecond), response)
	rec.CaptureReceived(at.Add(10*time.Millisecond), corrupted)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	var kinds []exbus.Kind
	sum, err := Replay(&buf, func(r Record, res exbus.ScanResult) {
		if res.Event == exbus.ScanFrame {
			kinds = append(kinds, res.Frame.Kind)
		}
	})
	require.NoError(t, err)
	require.Equal(t, 5, sum.Records)
	require.Equal(t, len(channels)+len(request)*2, sum.Received)
	require.Equal(t, len(response), sum.Sent)
	require.Equal(t, map[string]int{
		"channels":           1,
		"telemetry-request":  1,
		"telemetry-response": 1,
	}, sum.Frames)
	require.Equal(t, 1, sum.ChecksumErrors)
	require.Zero(t, sum.FramingErrors)
	require.True(t, at.Equal(sum.Start))
	require.True(t, at.Add(10*time.Millisecond).Equal(sum.End))
	require.Equal(t, []exbus.Kind{
		exbus.KindChannelData,
		exbus.KindTelemetryRequest,
		exbus.KindTelemetryResponse,
	}, kinds)
}
