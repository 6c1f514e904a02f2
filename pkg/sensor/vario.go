package sensor

import (
	"context"
	"math"
	"time"

	"github.com/robotalks/exbus.go/pkg/telemetry"
)

// Pressure is one reading of a barometric sensor.
type Pressure struct {
	Pascal  float64
	Celsius float64
}

// PressureSource is a barometric sensor.
type PressureSource interface {
	ReadPressure(ctx context.Context) (Pressure, error)
}

// SeaLevelPressure is the ISA standard pressure in Pa.
const SeaLevelPressure = 101325.0

// Altitude converts pressure to ISA altitude in meters.
func Altitude(pascal float64) float64 {
	return 44330 * (1 - math.Pow(pascal/SeaLevelPressure, 1/5.255))
}

// VarioValues selects the reported values, a zero ID disables one.
type VarioValues struct {
	Pressure    telemetry.Descriptor
	Temperature telemetry.Descriptor
	Altitude    telemetry.Descriptor
	Climb       telemetry.Descriptor
	MaxAltitude telemetry.Descriptor
	MaxClimb    telemetry.Descriptor
}

// Default vario tuning.
const (
	DefaultDeadZone = 0.05
)

// Vario derives altitude relative to the first reading and climb rate
// from a pressure source.
type Vario struct {
	Source   PressureSource
	Values   VarioValues
	DeadZone float64
	// Smoothing filters pressure and climb rate.
	PressureFilter AlphaBeta
	ClimbFilter    AlphaBeta
	// Now is the clock, time.Now if nil.
	Now func() time.Time

	started     bool
	reference   float64
	altitude    float64
	lastTime    time.Time
	maxAltitude float64
	maxClimb    float64
}

// NewVario creates a Vario.
func NewVario(source PressureSource, values VarioValues) *Vario {
	return &Vario{
		Source:         source,
		Values:         values,
		DeadZone:       DefaultDeadZone,
		PressureFilter: AlphaBeta{Alpha: 0.08, Beta: 0.003},
		ClimbFilter:    AlphaBeta{Alpha: 0.5, Beta: 0.05},
	}
}

// Name implements Sensor.
func (v *Vario) Name() string {
	return "vario"
}

func (v *Vario) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Read implements Sensor.
func (v *Vario) Read(ctx context.Context) ([]telemetry.Value, error) {
	p, err := v.Source.ReadPressure(ctx)
	if err != nil {
		return nil, err
	}
	now := v.now()
	var climb float64
	if !v.started {
		v.started = true
		v.PressureFilter.Estimate = p.Pascal
		v.reference = Altitude(p.Pascal)
	} else {
		pascal := v.PressureFilter.Update(p.Pascal)
		altitude := Altitude(pascal) - v.reference
		if dt := now.Sub(v.lastTime).Seconds(); dt > 0 {
			climb = v.ClimbFilter.Update(deadZone((altitude-v.altitude)/dt, v.DeadZone))
		}
		v.altitude = altitude
	}
	v.lastTime = now
	v.maxAltitude = math.Max(v.maxAltitude, v.altitude)
	v.maxClimb = math.Max(v.maxClimb, climb)

	var values []telemetry.Value
	add := func(d telemetry.Descriptor, n float64) {
		if d.ID != 0 {
			values = append(values, d.Numeric(n))
		}
	}
	add(v.Values.Pressure, p.Pascal/100)
	add(v.Values.Temperature, p.Celsius)
	add(v.Values.Altitude, v.altitude)
	add(v.Values.Climb, climb)
	add(v.Values.MaxAltitude, v.maxAltitude)
	add(v.Values.MaxClimb, v.maxClimb)
	return values, nil
}

func deadZone(x, zone float64) float64 {
	switch {
	case x > zone:
		return x - zone
	case x < -zone:
		return x + zone
	}
	return 0
}

// PressureSourceFunc is func type of PressureSource.
type PressureSourceFunc func(ctx context.Context) (Pressure, error)

// ReadPressure implements PressureSource.
func (f PressureSourceFunc) ReadPressure(ctx context.Context) (Pressure, error) {
	return f(ctx)
}
