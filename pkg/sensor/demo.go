package sensor

import (
	"context"
	"math"
	"time"
)

// Demo is a synthetic pressure source for bench tests without hardware.
// It simulates climbing and sinking in a slow cycle.
type Demo struct {
	// Amplitude of the altitude cycle in meters.
	Amplitude float64
	// Period of the altitude cycle.
	Period time.Duration
	// Now is the clock, time.Now if nil.
	Now func() time.Time

	start time.Time
}

// NewDemo creates a Demo source.
func NewDemo() *Demo {
	return &Demo{Amplitude: 50, Period: time.Minute}
}

// ReadPressure implements PressureSource.
func (d *Demo) ReadPressure(context.Context) (Pressure, error) {
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}
	if d.start.IsZero() {
		d.start = now
	}
	phase := 2 * math.Pi * now.Sub(d.start).Seconds() / d.Period.Seconds()
	altitude := d.Amplitude * (1 - math.Cos(phase)) / 2
	return Pressure{
		Pascal:  PressureAt(altitude),
		Celsius: 15 - 0.0065*altitude,
	}, nil
}

// PressureAt is the inverse of Altitude.
func PressureAt(altitude float64) float64 {
	return SeaLevelPressure * math.Pow(1-altitude/44330, 5.255)
}
