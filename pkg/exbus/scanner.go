package exbus

// ScanEvent is what happened after the scanner consumed a byte.
type ScanEvent int

const (
	// ScanNone means nothing worth reporting.
	ScanNone ScanEvent = iota
	// ScanStart means a start marker (header pair) was recognized.
	ScanStart
	// ScanFrame means a complete, checksum-valid frame is available.
	ScanFrame
	// ScanFramingError means the candidate can't be a valid frame.
	ScanFramingError
	// ScanChecksumError means the candidate completed with a bad checksum.
	ScanChecksumError
)

var scanEventNames = [...]string{"none", "start", "frame", "framing-error", "checksum-error"}

// String implements fmt.Stringer.
func (e ScanEvent) String() string {
	if e >= 0 && int(e) < len(scanEventNames) {
		return scanEventNames[e]
	}
	return "unknown"
}

// ScanResult indicates the result after one scanning step.
type ScanResult struct {
	Event ScanEvent
	Frame *Frame
	Err   error
}

// IsError tells if the result reports a rejected candidate.
func (r ScanResult) IsError() bool {
	return r.Event == ScanFramingError || r.Event == ScanChecksumError
}

type scanState int

const (
	stateHeader scanState = iota // waiting for a header byte
	stateMode                    // header seen, waiting for mode byte
	stateLength                  // waiting for length byte
	stateBody                    // collecting the rest of the frame
)

// Scanner recognizes Ex Bus frames in a byte stream.
// It only advances when bytes are supplied and never blocks.
// The zero value is ready to use.
type Scanner struct {
	state   scanState
	buf     [MaxFrameSize]byte
	n       int
	length  int
	backlog []byte
	spare   [MaxFrameSize]byte
}

// Receiving tells if a candidate frame is partially received.
func (s *Scanner) Receiving() bool {
	return s.state != stateHeader
}

// Reset drops the partial candidate and pending bytes.
func (s *Scanner) Reset() {
	s.state, s.n, s.length = stateHeader, 0, 0
	s.backlog = nil
}

// Scan consumes one byte and returns the first event it produces.
// After a rejected candidate, the bytes following its start marker are
// scanned again and may produce more events, which are returned by Next.
func (s *Scanner) Scan(b byte) ScanResult {
	if len(s.backlog) == 0 {
		s.backlog = s.spare[:0]
	}
	s.backlog = append(s.backlog, b)
	r, _ := s.Next()
	return r
}

// Next returns the next pending event.
func (s *Scanner) Next() (ScanResult, bool) {
	for len(s.backlog) > 0 {
		b := s.backlog[0]
		s.backlog = s.backlog[1:]
		if r := s.step(b); r.Event != ScanNone {
			return r, true
		}
	}
	return ScanResult{}, false
}

// Buffered is the number of received bytes waiting to be scanned
// again, which arrived after the last returned event.
func (s *Scanner) Buffered() int {
	return len(s.backlog)
}

// Feed scans all bytes in p and reports every event to fn.
func (s *Scanner) Feed(p []byte, fn func(ScanResult)) {
	for _, b := range p {
		for r := s.Scan(b); r.Event != ScanNone; r, _ = s.Next() {
			fn(r)
		}
	}
}

// Timeout abandons a partially received candidate.
// The bytes received so far are scanned again for a start marker.
func (s *Scanner) Timeout(fn func(ScanResult)) {
	if !s.Receiving() {
		return
	}
	fn(s.fail(ScanFramingError, &FramingError{Length: s.length, Reason: "incomplete"}))
	for r, ok := s.Next(); ok; r, ok = s.Next() {
		fn(r)
	}
}

func isHeader(b byte) bool {
	return b == HeaderChannels || b == HeaderRequest || b == HeaderAnswer
}

func isMode(b byte) bool {
	return b == ModeNoAnswer || b == ModeAnswer
}

func (s *Scanner) step(b byte) ScanResult {
	switch s.state {
	case stateHeader:
		if isHeader(b) {
			s.buf[0], s.n, s.state = b, 1, stateMode
		}
	case stateMode:
		if isMode(b) {
			s.buf[1], s.n, s.state = b, 2, stateLength
			return ScanResult{Event: ScanStart}
		}
		if isHeader(b) {
			s.buf[0] = b
			return ScanResult{}
		}
		s.state, s.n = stateHeader, 0
	case stateLength:
		s.buf[2], s.n = b, 3
		s.length = int(b)
		if s.length < MinFrameSize || s.length > MaxFrameSize {
			return s.fail(ScanFramingError, &FramingError{Length: s.length, Reason: "declared length out of range"})
		}
		s.state = stateBody
	case stateBody:
		s.buf[s.n] = b
		s.n++
		if s.n < s.length {
			return ScanResult{}
		}
		raw := make([]byte, s.n)
		copy(raw, s.buf[:s.n])
		frame, err := Classify(raw)
		if err != nil {
			event := ScanFramingError
			if _, ok := err.(*ChecksumError); ok {
				event = ScanChecksumError
			}
			return s.fail(event, err)
		}
		s.state, s.n, s.length = stateHeader, 0, 0
		return ScanResult{Event: ScanFrame, Frame: frame}
	}
	return ScanResult{}
}

// fail rejects the candidate and queues the bytes after its start byte,
// from the next possible header on, for scanning ahead of the rest.
func (s *Scanner) fail(event ScanEvent, err error) ScanResult {
	buffered := s.buf[1:s.n]
	for len(buffered) > 0 && !isHeader(buffered[0]) {
		buffered = buffered[1:]
	}
	if len(buffered) > 0 {
		backlog := make([]byte, 0, len(buffered)+len(s.backlog))
		backlog = append(backlog, buffered...)
		s.backlog = append(backlog, s.backlog...)
	}
	s.state, s.n, s.length = stateHeader, 0, 0
	return ScanResult{Event: event, Err: err}
}
