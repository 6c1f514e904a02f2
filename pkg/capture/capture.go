// Package capture records the raw Ex Bus byte stream as CBOR records.
package capture

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"
)

// Direction tells who sent the bytes.
type Direction uint8

// Directions.
const (
	Received Direction = 1
	Sent     Direction = 2
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Received:
		return "rx"
	case Sent:
		return "tx"
	}
	return "??"
}

// Record is a chunk of bytes seen on the bus.
type Record struct {
	Time time.Time `cbor:"1,keyasint"`
	Dir  Direction `cbor:"2,keyasint"`
	Data []byte    `cbor:"3,keyasint"`
}

// DefaultDepth is the number of records queued for writing.
const DefaultDepth = 1024

type flusher interface {
	Flush() error
}

// Recorder implements exbus.Capture. Records are queued and written by
// Run, when the queue is full the oldest record is dropped.
type Recorder struct {
	w       io.Writer
	enc     *cbor.Encoder
	queue   chan Record
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w io.Writer, depth int) (*Recorder, error) {
	if depth <= 0 {
		depth = DefaultDepth
	}
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, err
	}
	return &Recorder{w: w, enc: em.NewEncoder(w), queue: make(chan Record, depth)}, nil
}

// CaptureReceived implements exbus.Capture.
func (r *Recorder) CaptureReceived(t time.Time, p []byte) {
	r.push(Record{Time: t, Dir: Received, Data: append([]byte(nil), p...)})
}

// CaptureSent implements exbus.Capture.
func (r *Recorder) CaptureSent(t time.Time, p []byte) {
	r.push(Record{Time: t, Dir: Sent, Data: append([]byte(nil), p...)})
}

func (r *Recorder) push(rec Record) {
	for {
		select {
		case r.queue <- rec:
			return
		default:
		}
		select {
		case <-r.queue:
			r.dropped.Add(1)
		default:
		}
	}
}

// Dropped is the number of records lost on overflow.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Written is the number of records written.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Run writes queued records until ctx is done, then writes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-r.queue:
			if err := r.write(rec); err != nil {
				return err
			}
		case <-ctx.Done():
			return r.drain(ctx.Err())
		}
	}
}

func (r *Recorder) write(rec Record) error {
	if err := r.enc.Encode(rec); err != nil {
		return err
	}
	r.written.Add(1)
	return nil
}

func (r *Recorder) drain(result error) error {
	for {
		select {
		case rec := <-r.queue:
			if err := r.write(rec); err != nil {
				return err
			}
		default:
			if f, ok := r.w.(flusher); ok {
				if err := f.Flush(); err != nil {
					return err
				}
			}
			if n := r.Dropped(); n > 0 {
				glog.Warningf("capture: %d records dropped", n)
			}
			return result
		}
	}
}

// Reader reads records written by Recorder.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next reads the next record, io.EOF at the end.
func (r *Reader) Next() (rec Record, err error) {
	err = r.dec.Decode(&rec)
	return
}
