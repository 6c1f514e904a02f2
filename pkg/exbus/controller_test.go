package exbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

type testTransport struct {
	chunks [][]byte
	sent   [][]byte
	err    error
}

func (t *testTransport) Receive(p []byte) (int, error) {
	if len(t.chunks) == 0 {
		return 0, t.err
	}
	n := copy(p, t.chunks[0])
	t.chunks = t.chunks[1:]
	return n, nil
}

func (t *testTransport) Send(p []byte) error {
	t.sent = append(t.sent, append([]byte{}, p...))
	return nil
}

type controllerTest struct {
	clock     *testClock
	transport *testTransport
	ctl       *Controller
	states    []BusState
	observed  []ScanEvent
}

func newControllerTest(r Responder) *controllerTest {
	ct := &controllerTest{clock: newTestClock(), transport: &testTransport{}}
	ct.ctl = NewController(ct.transport, r)
	ct.ctl.Now = ct.clock.Now
	ct.ctl.LockThread = false
	ct.ctl.Notifier = StateChangedFunc(func(from, to BusState) {
		ct.states = append(ct.states, to)
	})
	ct.ctl.Observer = ObserveFunc(func(r ScanResult) {
		ct.observed = append(ct.observed, r.Event)
	})
	return ct
}

func noAnswer(*Frame) ([]byte, bool) {
	return nil, false
}

func echoAnswer(req *Frame) ([]byte, bool) {
	b, err := EncodeResponse(req.PacketID, req.DataID, []byte{0x01})
	return b, err == nil
}

func sampleChannelFrame(t *testing.T) []byte {
	channels := []uint16{0x1F40, 0x2EDD, 0x2EE7, 0x2EF2}
	for len(channels) < 16 {
		channels = append(channels, 0x2EE0)
	}
	b, err := EncodeChannels(0x42, channels)
	require.NoError(t, err)
	require.Equal(t, []byte{0x3E, 0x03, 0x28, 0x42, 0x31, 0x20, 0x40, 0x1F, 0xDD, 0x2E, 0xE7, 0x2E, 0xF2, 0x2E}, b[:14])
	return b
}

func TestControllerNoDataWindowExpires(t *testing.T) {
	ct := newControllerTest(RespondFunc(noAnswer))
	now := ct.clock.Now()
	require.NoError(t, ct.ctl.Feed(now, sampleChannelFrame(t)))
	require.Equal(t, StateIdle, ct.ctl.State())
	require.NoError(t, ct.ctl.Feed(now, telemetryRequest))
	require.Equal(t, StateResponseWindowOpen, ct.ctl.State())

	require.NoError(t, ct.ctl.Poll(ct.clock.advance(time.Millisecond)))
	require.Equal(t, StateResponseWindowOpen, ct.ctl.State())
	require.NoError(t, ct.ctl.Poll(ct.clock.advance(4*time.Millisecond)))
	require.Equal(t, StateIdle, ct.ctl.State())

	require.Empty(t, ct.transport.sent)
	require.Equal(t, []BusState{
		StateFrameReceiving, StateFrameReady, StateIdle,
		StateFrameReceiving, StateFrameReady, StateResponseWindowOpen,
		StateWindowExpired, StateIdle,
	}, ct.states)
	stats := ct.ctl.Stats().Snapshot()
	require.Equal(t, uint64(1), stats.ChannelFrames)
	require.Equal(t, uint64(1), stats.Requests)
	require.Equal(t, uint64(1), stats.WindowsOpened)
	require.Equal(t, uint64(1), stats.Unanswered)
	require.Zero(t, stats.Responses)
}

func TestControllerAnswers(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), jetiboxRequest))
	require.Equal(t, StateIdle, ct.ctl.State())
	require.Len(t, ct.transport.sent, 1)

	f, err := Classify(ct.transport.sent[0])
	require.NoError(t, err)
	require.Equal(t, KindJetiBoxResponse, f.Kind)
	require.Equal(t, byte(0x88), f.PacketID)

	require.Equal(t, []BusState{
		StateFrameReceiving, StateFrameReady, StateResponseWindowOpen,
		StateTransmitting, StateIdle,
	}, ct.states)
	stats := ct.ctl.Stats().Snapshot()
	require.Equal(t, uint64(1), stats.Responses)
	require.Equal(t, uint64(len(f.Raw)), stats.BytesSent)
	require.Equal(t, uint64(len(jetiboxRequest)), stats.BytesReceived)
}

func TestControllerAnswerBecomesAvailable(t *testing.T) {
	ready := false
	ct := newControllerTest(RespondFunc(func(req *Frame) ([]byte, bool) {
		if !ready {
			return nil, false
		}
		return echoAnswer(req)
	}))
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), telemetryRequest))
	require.Equal(t, StateResponseWindowOpen, ct.ctl.State())
	ready = true
	require.NoError(t, ct.ctl.Poll(ct.clock.advance(2*time.Millisecond)))
	require.Equal(t, StateIdle, ct.ctl.State())
	require.Len(t, ct.transport.sent, 1)
}

func TestControllerLateEncoding(t *testing.T) {
	var ct *controllerTest
	ct = newControllerTest(RespondFunc(func(req *Frame) ([]byte, bool) {
		ct.clock.advance(5 * time.Millisecond)
		return echoAnswer(req)
	}))
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), telemetryRequest))
	require.Equal(t, StateIdle, ct.ctl.State())
	require.Empty(t, ct.transport.sent)
	require.Equal(t, []BusState{
		StateFrameReceiving, StateFrameReady, StateResponseWindowOpen,
		StateWindowExpired, StateIdle,
	}, ct.states)
	require.Equal(t, uint64(1), ct.ctl.Stats().DeadlineMisses.Load())
}

func TestControllerMasterReclaimsLine(t *testing.T) {
	ct := newControllerTest(RespondFunc(noAnswer))
	now := ct.clock.Now()
	require.NoError(t, ct.ctl.Feed(now, telemetryRequest))
	require.Equal(t, StateResponseWindowOpen, ct.ctl.State())
	require.NoError(t, ct.ctl.Feed(ct.clock.advance(time.Millisecond), sampleChannelFrame(t)))
	require.Equal(t, StateIdle, ct.ctl.State())
	require.Contains(t, ct.states, StateWindowExpired)
	require.Equal(t, uint64(1), ct.ctl.Stats().Unanswered.Load())
	require.Equal(t, uint64(1), ct.ctl.Stats().ChannelFrames.Load())
}

func TestControllerRequestAndChannelsInOneChunk(t *testing.T) {
	ct := newControllerTest(RespondFunc(noAnswer))
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), concat(telemetryRequest, sampleChannelFrame(t))))
	require.Equal(t, StateIdle, ct.ctl.State())
	require.Equal(t, uint64(1), ct.ctl.Stats().Unanswered.Load())
}

func TestControllerStaleRequestInChunk(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), concat(telemetryRequest, sampleChannelFrame(t)[:4])))
	require.Equal(t, StateFrameReceiving, ct.ctl.State())
	require.Empty(t, ct.transport.sent)
	require.NotContains(t, ct.states, StateTransmitting)
	require.Equal(t, []BusState{
		StateFrameReceiving, StateFrameReady, StateResponseWindowOpen,
		StateWindowExpired, StateIdle, StateFrameReceiving,
	}, ct.states)
	stats := ct.ctl.Stats().Snapshot()
	require.Equal(t, uint64(1), stats.WindowsOpened)
	require.Equal(t, uint64(1), stats.Unanswered)
	require.Zero(t, stats.Responses)
}

func TestControllerStaleRequestFromResync(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	// a bogus start marker swallows the request into a long candidate
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), concat([]byte{0x3E, 0x03, 0x20}, telemetryRequest)))
	require.Equal(t, StateFrameReceiving, ct.ctl.State())
	require.NoError(t, ct.ctl.Poll(ct.clock.advance(10*time.Millisecond)))
	require.Empty(t, ct.transport.sent)

	require.NoError(t, ct.ctl.Feed(ct.clock.advance(10*time.Millisecond), sampleChannelFrame(t)))
	require.Empty(t, ct.transport.sent)
	require.NotContains(t, ct.states, StateTransmitting)
	require.Equal(t, StateIdle, ct.ctl.State())
	stats := ct.ctl.Stats().Snapshot()
	require.Equal(t, uint64(1), stats.Requests)
	require.Equal(t, uint64(1), stats.Unanswered)
	require.Equal(t, uint64(1), stats.ChannelFrames)
	require.Zero(t, stats.Responses)
}

func TestControllerRecoveredRequestAnswered(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	// the failed candidate ends exactly with the request
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), concat([]byte{0x3E, 0x03, 0x0B}, telemetryRequest)))
	require.Len(t, ct.transport.sent, 1)
	f, err := Classify(ct.transport.sent[0])
	require.NoError(t, err)
	require.Equal(t, KindTelemetryResponse, f.Kind)
	require.Equal(t, uint64(1), ct.ctl.Stats().ChecksumErrors.Load())
}

func TestControllerRecoveredRequestAfterTimeout(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	ct.ctl.FrameTimeout = 10 * time.Millisecond
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), concat([]byte{0x3E, 0x03, 0x20}, telemetryRequest)))
	require.NoError(t, ct.ctl.Poll(ct.clock.advance(10*time.Millisecond)))
	require.Empty(t, ct.transport.sent)
	require.Equal(t, StateIdle, ct.ctl.State())
	require.Equal(t, uint64(1), ct.ctl.Stats().Unanswered.Load())
	require.Zero(t, ct.ctl.Stats().DeadlineMisses.Load())
}

func TestControllerErrors(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	bad := append([]byte{}, telemetryRequest...)
	bad[3] = 0x43
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), bad))
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), []byte{0x3D, 0x01, 0x02}))
	require.Equal(t, StateIdle, ct.ctl.State())
	require.Empty(t, ct.transport.sent)
	require.Equal(t, []ScanEvent{ScanChecksumError, ScanFramingError}, ct.observed)
	stats := ct.ctl.Stats().Snapshot()
	require.Equal(t, uint64(1), stats.ChecksumErrors)
	require.Equal(t, uint64(1), stats.FramingErrors)
	require.Zero(t, stats.WindowsOpened)
}

func TestControllerIgnoresResponses(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), telemetryAnswer))
	require.Empty(t, ct.transport.sent)
	require.Equal(t, uint64(1), ct.ctl.Stats().OtherFrames.Load())
}

func TestControllerFrameTimeout(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	ct.ctl.FrameTimeout = time.Millisecond
	require.NoError(t, ct.ctl.Feed(ct.clock.Now(), telemetryRequest[:3]))
	require.Equal(t, StateFrameReceiving, ct.ctl.State())
	require.NoError(t, ct.ctl.Poll(ct.clock.advance(500*time.Microsecond)))
	require.Equal(t, StateFrameReceiving, ct.ctl.State())
	require.NoError(t, ct.ctl.Poll(ct.clock.advance(time.Millisecond)))
	require.Equal(t, StateIdle, ct.ctl.State())
	require.Equal(t, uint64(1), ct.ctl.Stats().FramingErrors.Load())
}

type testCapture struct {
	received, sent [][]byte
}

func (c *testCapture) CaptureReceived(_ time.Time, p []byte) {
	c.received = append(c.received, append([]byte{}, p...))
}

func (c *testCapture) CaptureSent(_ time.Time, p []byte) {
	c.sent = append(c.sent, append([]byte{}, p...))
}

func TestControllerRun(t *testing.T) {
	ct := newControllerTest(RespondFunc(echoAnswer))
	errLost := errors.New("lost")
	ct.transport.err = errLost
	ct.transport.chunks = [][]byte{
		sampleChannelFrame(t),
		telemetryRequest[:5],
		telemetryRequest[5:],
		jetiboxRequest,
	}
	capture := &testCapture{}
	ct.ctl.Capture = capture
	err := ct.ctl.Run(context.Background())
	require.ErrorIs(t, err, errLost)
	require.Len(t, ct.transport.sent, 2)
	require.Len(t, capture.received, 4)
	require.Equal(t, ct.transport.sent, capture.sent)
}

func TestControllerRunCanceled(t *testing.T) {
	ct := newControllerTest(RespondFunc(noAnswer))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, ct.ctl.Run(ctx), context.Canceled)
}
