package uart

import (
	"github.com/golang/glog"

	"github.com/robotalks/exbus.go/pkg/exbus"
)

// DefaultAutoBaudThreshold is the number of consecutive rejected frames
// before switching the baud rate.
const DefaultAutoBaudThreshold = 8

// BaudSetter changes the line speed.
type BaudSetter interface {
	Baud() int
	SetBaud(baud int) error
}

// AutoBaud implements exbus.Observer. It toggles between 125000 and
// 250000 baud when only rejected frames are received.
type AutoBaud struct {
	Port      BaudSetter
	Threshold int

	failures int
}

// NewAutoBaud creates an AutoBaud.
func NewAutoBaud(port BaudSetter) *AutoBaud {
	return &AutoBaud{Port: port, Threshold: DefaultAutoBaudThreshold}
}

// Observe implements exbus.Observer.
func (a *AutoBaud) Observe(r exbus.ScanResult) {
	switch {
	case r.Event == exbus.ScanFrame:
		a.failures = 0
	case r.IsError():
		a.failures++
		if a.failures < a.Threshold {
			return
		}
		a.failures = 0
		baud := Baud250k
		if a.Port.Baud() == Baud250k {
			baud = Baud125k
		}
		if err := a.Port.SetBaud(baud); err != nil {
			glog.Errorf("auto baud: %v", err)
			return
		}
		glog.Infof("auto baud: switched to %d", baud)
	}
}
