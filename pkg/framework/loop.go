package framework

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the loop interval if not specified.
const DefaultInterval = 100 * time.Millisecond

// Loop invokes controllers periodically, in the order they are added.
type Loop struct {
	Interval time.Duration

	controllers []Controller
	wakeUpCh    chan struct{}
}

// NewLoop creates a Loop.
func NewLoop(interval time.Duration) *Loop {
	return &Loop{Interval: interval, wakeUpCh: make(chan struct{}, 1)}
}

// Add registers controllers.
func (l *Loop) Add(ctls ...Controller) *Loop {
	l.controllers = append(l.controllers, ctls...)
	return l
}

// TriggerNext schedules an iteration right away.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	l.RunOnce(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.RunOnce(ctx, now)
		case <-l.wakeUpCh:
			l.RunOnce(ctx, time.Now())
		}
	}
}

// RunOnce runs one iteration. Controller errors are logged.
func (l *Loop) RunOnce(ctx context.Context, now time.Time) {
	for _, ctl := range l.controllers {
		if err := ctl.Control(ctx, now); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}
