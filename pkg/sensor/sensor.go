// Package sensor runs the acquisition context which reads sensors and
// publishes their values as telemetry snapshots.
package sensor

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/exbus.go/pkg/telemetry"
)

// Sensor produces telemetry values.
// Values are converted to their transmitted units by the sensor.
type Sensor interface {
	Name() string
	Read(ctx context.Context) ([]telemetry.Value, error)
}

// Acquisition collects all sensors and publishes one snapshot per round.
// It implements framework.Controller.
type Acquisition struct {
	Store *telemetry.Store

	sensors []Sensor
	last    [][]telemetry.Value
}

// NewAcquisition creates an Acquisition publishing to store.
func NewAcquisition(store *telemetry.Store) *Acquisition {
	return &Acquisition{Store: store}
}

// Add registers sensors, values are published in registration order.
func (a *Acquisition) Add(sensors ...Sensor) *Acquisition {
	a.sensors = append(a.sensors, sensors...)
	a.last = append(a.last, make([][]telemetry.Value, len(sensors))...)
	return a
}

// Collect reads all sensors and publishes the values.
// A failed sensor contributes the values of its last successful read.
// It returns the published generation, 0 if there was nothing to publish.
func (a *Acquisition) Collect(ctx context.Context) uint64 {
	var values []telemetry.Value
	for n, s := range a.sensors {
		read, err := s.Read(ctx)
		if err != nil {
			glog.Warningf("sensor %s: %v", s.Name(), err)
		} else {
			a.last[n] = read
		}
		values = append(values, a.last[n]...)
	}
	if len(values) == 0 {
		return 0
	}
	gen := a.Store.Publish(values)
	if glog.V(5) {
		glog.Infof("published generation %d: %v", gen, values)
	}
	return gen
}

// Control implements framework.Controller.
func (a *Acquisition) Control(ctx context.Context, _ time.Time) error {
	a.Collect(ctx)
	return nil
}
