// Package uart connects the Ex Bus controller to a serial port.
package uart

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/exbus.go/pkg/exbus"
)

// Ex Bus baud rates.
const (
	Baud125k = 125000
	Baud250k = 250000
)

// DefaultPollInterval is the read timeout of the port.
const DefaultPollInterval = time.Millisecond

// Line is the part of serial.Port used by Port.
type Line interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
}

// Port implements exbus.Transport over a serial line.
type Port struct {
	Path string

	line Line
	baud int
}

// Mode is the Ex Bus line setting, 8-N-1.
func Mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens a serial port. Receive waits at most poll for bytes.
func Open(path string, baud int, poll time.Duration) (*Port, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	sp, err := serial.Open(path, Mode(baud))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := sp.SetReadTimeout(poll); err != nil {
		sp.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	glog.Infof("opened %s at %d baud", path, baud)
	return &Port{Path: path, line: sp, baud: baud}, nil
}

// NewPort creates a Port on an opened line.
func NewPort(path string, line Line, baud int) *Port {
	return &Port{Path: path, line: line, baud: baud}
}

// Receive implements exbus.Transport.
func (p *Port) Receive(buf []byte) (int, error) {
	n, err := p.line.Read(buf)
	if err != nil {
		return n, p.lost("read", err)
	}
	return n, nil
}

// Send implements exbus.Transport.
func (p *Port) Send(frame []byte) error {
	for len(frame) > 0 {
		n, err := p.line.Write(frame)
		if err != nil {
			return p.lost("write", err)
		}
		if n == 0 {
			return p.lost("write", io.ErrShortWrite)
		}
		frame = frame[n:]
	}
	return nil
}

func (p *Port) lost(op string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", exbus.ErrTransportLost, op, p.Path, err)
}

// Baud gets the current baud rate.
func (p *Port) Baud() int {
	return p.baud
}

// SetBaud changes the baud rate.
func (p *Port) SetBaud(baud int) error {
	if err := p.line.SetMode(Mode(baud)); err != nil {
		return fmt.Errorf("set %d baud on %s: %w", baud, p.Path, err)
	}
	p.baud = baud
	return nil
}

// Close closes the line.
func (p *Port) Close() error {
	return p.line.Close()
}
