package replay

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/exbus.go/pkg/capture"
	"github.com/robotalks/exbus.go/pkg/cli/sh"
	"github.com/robotalks/exbus.go/pkg/exbus"
)

// ReplayCmd scans a capture file.
var ReplayCmd = ishell.Cmd{
	Name:    "replay",
	Aliases: []string{"r"},
	Help:    "FILE [-v]",
	Func: func(c *ishell.Context) {
		if len(c.Args) < 1 {
			c.Err(fmt.Errorf("FILE required"))
			return
		}
		verbose := len(c.Args) > 1 && c.Args[1] == "-v"
		f, err := os.Open(c.Args[0])
		if err != nil {
			c.Err(err)
			return
		}
		defer f.Close()
		var start *capture.Record
		sum, err := capture.Replay(bufio.NewReader(f), func(rec capture.Record, res exbus.ScanResult) {
			if !verbose {
				return
			}
			if start == nil {
				start = &rec
			}
			offset := rec.Time.Sub(start.Time)
			if res.IsError() {
				c.Printf("%12s %s %s: %v\n", offset, rec.Dir, res.Event, res.Err)
				return
			}
			c.Printf("%12s %s %s\n", offset, rec.Dir, res.Frame)
		})
		if err != nil {
			c.Err(err)
			return
		}
		sh.Print(c, sum, FormatSummary(sum))
	},
}

// FormatSummary prints Summary for display.
func FormatSummary(sum *capture.Summary) string {
	s := fmt.Sprintf("%d records, %d bytes received, %d bytes sent in %s",
		sum.Records, sum.Received, sum.Sent, sum.End.Sub(sum.Start))
	kinds := make([]string, 0, len(sum.Frames))
	for kind := range sum.Frames {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		s += fmt.Sprintf("\n%20s %d", kind, sum.Frames[kind])
	}
	s += fmt.Sprintf("\n%20s %d\n%20s %d", "checksum-errors", sum.ChecksumErrors, "framing-errors", sum.FramingErrors)
	return s
}

func init() {
	sh.AddCmds(&ReplayCmd)
}
