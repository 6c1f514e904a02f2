package capture

import (
	"io"
	"time"

	"github.com/robotalks/exbus.go/pkg/exbus"
)

// Summary counts what a recording contains.
type Summary struct {
	Records        int            `json:"records"`
	Received       int            `json:"received"`
	Sent           int            `json:"sent"`
	Frames         map[string]int `json:"frames"`
	ChecksumErrors int            `json:"checksum-errors"`
	FramingErrors  int            `json:"framing-errors"`
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
}

// ReplayFunc receives the frames and errors found in a recording.
type ReplayFunc func(rec Record, res exbus.ScanResult)

// Replay scans a recording. Each direction has its own scanner, so
// answers written by the device are recognized as well.
func Replay(r io.Reader, fn ReplayFunc) (*Summary, error) {
	var scanners [2]exbus.Scanner
	sum := &Summary{Frames: make(map[string]int)}
	reader := NewReader(r)
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return sum, nil
		}
		if err != nil {
			return sum, err
		}
		if sum.Records == 0 {
			sum.Start = rec.Time
		}
		sum.End = rec.Time
		sum.Records++
		scanner := &scanners[0]
		switch rec.Dir {
		case Received:
			sum.Received += len(rec.Data)
		case Sent:
			sum.Sent += len(rec.Data)
			scanner = &scanners[1]
		default:
			continue
		}
		scanner.Feed(rec.Data, func(res exbus.ScanResult) {
			switch res.Event {
			case exbus.ScanFrame:
				sum.Frames[res.Frame.Kind.String()]++
			case exbus.ScanChecksumError:
				sum.ChecksumErrors++
			case exbus.ScanFramingError:
				sum.FramingErrors++
			default:
				return
			}
			if fn != nil {
				fn(rec, res)
			}
		})
	}
}
