package exbus

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultResponseBudget is the time a slave may start answering after a request.
const DefaultResponseBudget = 4 * time.Millisecond

// BusState is the state of the half-duplex timing controller.
type BusState int32

// Bus states.
const (
	StateIdle BusState = iota
	StateFrameReceiving
	StateFrameReady
	StateResponseWindowOpen
	StateTransmitting
	StateWindowExpired
)

var busStateNames = [...]string{
	StateIdle:               "idle",
	StateFrameReceiving:     "receiving",
	StateFrameReady:         "frame-ready",
	StateResponseWindowOpen: "window-open",
	StateTransmitting:       "transmitting",
	StateWindowExpired:      "window-expired",
}

// String implements fmt.Stringer.
func (s BusState) String() string {
	if s >= 0 && int(s) < len(busStateNames) {
		return busStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transport is the half-duplex serial line.
type Transport interface {
	// Receive reads bytes which already arrived, waiting at most a short
	// poll interval. Zero bytes with nil error means nothing arrived.
	Receive(p []byte) (int, error)
	// Send writes a complete frame.
	Send(p []byte) error
}

// Responder builds the answer to a request frame.
// It returns false when there is nothing to answer with.
type Responder interface {
	Respond(req *Frame) ([]byte, bool)
}

// RespondFunc is func type of Responder.
type RespondFunc func(req *Frame) ([]byte, bool)

// Respond implements Responder.
func (f RespondFunc) Respond(req *Frame) ([]byte, bool) {
	return f(req)
}

// StateNotifier is called when the bus state changed.
type StateNotifier interface {
	StateChanged(from, to BusState)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(from, to BusState)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(from, to BusState) {
	f(from, to)
}

// Observer is called with every scan result except ScanNone and ScanStart.
type Observer interface {
	Observe(ScanResult)
}

// ObserveFunc is func type of Observer.
type ObserveFunc func(ScanResult)

// Observe implements Observer.
func (f ObserveFunc) Observe(r ScanResult) {
	f(r)
}

// Capture receives the raw byte stream in both directions.
// Implementations must not block.
type Capture interface {
	CaptureReceived(t time.Time, p []byte)
	CaptureSent(t time.Time, p []byte)
}

// Controller runs the slave side of the bus: it scans received bytes,
// opens a response window after each request and answers within it.
// All methods except State and Stats must be called from the bus context.
type Controller struct {
	Transport Transport
	Responder Responder
	Notifier  StateNotifier
	Observer  Observer
	Capture   Capture
	// Budget is the response window after a request frame.
	Budget time.Duration
	// FrameTimeout abandons a partial frame after no byte arrived for
	// this long. Zero disables it.
	FrameTimeout time.Duration
	// LockThread pins the bus loop to its OS thread.
	LockThread bool
	// Now is the clock, time.Now if nil.
	Now func() time.Time

	stats    Stats
	state    atomic.Int32
	scanner  Scanner
	request  *Frame
	deadline time.Time
	lastRecv time.Time
	sendErr  error
}

// NewController creates a Controller.
func NewController(t Transport, r Responder) *Controller {
	return &Controller{
		Transport:  t,
		Responder:  r,
		Budget:     DefaultResponseBudget,
		LockThread: true,
	}
}

// State gets the current bus state.
func (c *Controller) State() BusState {
	return BusState(c.state.Load())
}

// Stats gets the bus counters.
func (c *Controller) Stats() *Stats {
	return &c.stats
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) budget() time.Duration {
	if c.Budget > 0 {
		return c.Budget
	}
	return DefaultResponseBudget
}

func (c *Controller) setState(to BusState) {
	from := BusState(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	if glog.V(5) {
		glog.Infof("bus %s -> %s", from, to)
	}
	if n := c.Notifier; n != nil {
		n.StateChanged(from, to)
	}
}

// Feed processes bytes received at now.
// It returns an error only if sending an answer failed.
func (c *Controller) Feed(now time.Time, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	c.lastRecv = now
	c.stats.BytesReceived.Add(uint64(len(p)))
	if c.State() == StateResponseWindowOpen {
		// the master reclaimed the line
		c.expire(false)
	}
	c.sendErr = nil
	for i, b := range p {
		for r := c.scanner.Scan(b); r.Event != ScanNone; r, _ = c.scanner.Next() {
			c.handle(r, len(p)-1-i+c.scanner.Buffered())
		}
	}
	err := c.sendErr
	c.sendErr = nil
	return err
}

// Poll enforces the response deadline and the frame timeout at now.
func (c *Controller) Poll(now time.Time) error {
	switch c.State() {
	case StateResponseWindowOpen:
		if !now.Before(c.deadline) {
			c.expire(false)
			return nil
		}
		return c.respond()
	case StateFrameReceiving:
		if c.FrameTimeout > 0 && now.Sub(c.lastRecv) >= c.FrameTimeout {
			c.scanner.Timeout(func(r ScanResult) {
				c.handle(r, c.scanner.Buffered())
			})
		}
	}
	return nil
}

// handle processes one scanner event. trailing is the number of bytes
// received after the event, a request followed by more bytes is stale.
func (c *Controller) handle(r ScanResult, trailing int) {
	switch r.Event {
	case ScanStart:
		if c.State() == StateResponseWindowOpen {
			c.expire(false)
		}
		c.setState(StateFrameReceiving)
		return
	case ScanFramingError:
		c.stats.FramingErrors.Add(1)
		if glog.V(4) {
			glog.Infof("bus: %v", r.Err)
		}
		c.setState(StateIdle)
	case ScanChecksumError:
		c.stats.ChecksumErrors.Add(1)
		if glog.V(4) {
			glog.Infof("bus: %v", r.Err)
		}
		c.setState(StateIdle)
	case ScanFrame:
		c.stats.countFrame(r.Frame.Kind)
		if glog.V(6) {
			glog.Infof("bus frame %v", r.Frame)
		}
		c.setState(StateFrameReady)
		if r.Frame.Kind.IsRequest() && c.Responder != nil {
			c.openWindow(r.Frame, trailing)
		} else {
			c.setState(StateIdle)
		}
	default:
		return
	}
	if o := c.Observer; o != nil {
		o.Observe(r)
	}
	if c.State() == StateResponseWindowOpen && c.sendErr == nil {
		c.sendErr = c.respond()
	}
}

func (c *Controller) openWindow(req *Frame, trailing int) {
	c.request = req
	c.deadline = c.lastRecv.Add(c.budget())
	c.stats.WindowsOpened.Add(1)
	c.setState(StateResponseWindowOpen)
	switch {
	case trailing > 0:
		if glog.V(4) {
			glog.Infof("bus: %d bytes already followed %v", trailing, req)
		}
		c.expire(false)
	case !c.now().Before(c.deadline):
		c.expire(false)
	}
}

// respond asks the responder for an answer and transmits it if it
// became available before the deadline.
func (c *Controller) respond() error {
	answer, ok := c.Responder.Respond(c.request)
	if !ok {
		return nil
	}
	if !c.now().Before(c.deadline) {
		c.expire(true)
		return nil
	}
	c.setState(StateTransmitting)
	c.request = nil
	err := c.Transport.Send(answer)
	if err == nil {
		c.stats.Responses.Add(1)
		c.stats.BytesSent.Add(uint64(len(answer)))
		if cp := c.Capture; cp != nil {
			cp.CaptureSent(c.now(), answer)
		}
	}
	c.setState(StateIdle)
	return err
}

// expire closes the window without answering. late means an answer
// was ready but after the deadline.
func (c *Controller) expire(late bool) {
	if late {
		c.stats.DeadlineMisses.Add(1)
		if glog.V(4) {
			glog.Infof("bus: answer to %v missed the deadline", c.request)
		}
	} else {
		c.stats.Unanswered.Add(1)
	}
	c.request = nil
	c.setState(StateWindowExpired)
	c.setState(StateIdle)
}

// Run is the bus loop. It returns when ctx is done or the transport fails.
func (c *Controller) Run(ctx context.Context) error {
	if c.LockThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	buf := make([]byte, MaxFrameSize*4)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := c.Transport.Receive(buf)
		if err != nil {
			return err
		}
		now := c.now()
		if n > 0 {
			if cp := c.Capture; cp != nil {
				cp.CaptureReceived(now, buf[:n])
			}
			err = c.Feed(now, buf[:n])
		}
		if err == nil {
			err = c.Poll(c.now())
		}
		if err != nil {
			return err
		}
	}
}
