package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/exbus.go/pkg/capture"
)

func TestFormatSummary(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	sum := &capture.Summary{
		Records:  3,
		Received: 16,
		Sent:     10,
		Frames:   map[string]int{"telemetry-request": 2, "channels": 5},
		Start:    start,
		End:      start.Add(2 * time.Second),
	}
	require.Equal(t, "3 records, 16 bytes received, 10 bytes sent in 2s\n"+
		"            channels 5\n"+
		"   telemetry-request 2\n"+
		"     checksum-errors 0\n"+
		"      framing-errors 0", FormatSummary(sum))
}
