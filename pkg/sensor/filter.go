package sensor

// AlphaBeta is an alpha-beta filter with a fixed step.
type AlphaBeta struct {
	Alpha    float64
	Beta     float64
	Estimate float64
	Velocity float64
	// Step is the time between updates, 1 if zero.
	Step float64
}

// Update feeds a measurement and returns the new estimate.
func (f *AlphaBeta) Update(measurement float64) float64 {
	step := f.Step
	if step == 0 {
		step = 1
	}
	f.Estimate += f.Velocity * step
	residual := measurement - f.Estimate
	f.Estimate += f.Alpha * residual
	f.Velocity += f.Beta / step * residual
	return f.Estimate
}
