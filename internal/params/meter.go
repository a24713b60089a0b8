package params

import (
	"fmt"
	"math"
)

// #region meter
// Meter is a bounded, steppable scalar. Its value never leaves [lower, upper].
type Meter struct {
	value float64
	lower float64
	upper float64
	step  float64
}

// NewMeter validates the bounds and step and returns a meter at value.
func NewMeter(value, lower, upper, step float64) (*Meter, error) {
	for _, f := range []float64{value, lower, upper, step} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite meter field", ErrRange)
		}
	}
	if lower >= upper {
		return nil, fmt.Errorf("%w: lower bound %g >= upper bound %g", ErrRange, lower, upper)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step %g must be positive", ErrRange, step)
	}
	if value < lower || value > upper {
		return nil, fmt.Errorf("%w: value %g outside [%g, %g]", ErrRange, value, lower, upper)
	}
	return &Meter{value: value, lower: lower, upper: upper, step: step}, nil
}

// Read returns the current value.
func (m *Meter) Read() float64 {
	return m.value
}

// Increase moves the value up one step, saturating at the upper bound.
func (m *Meter) Increase() {
	m.value = math.Min(m.upper, m.value+m.step)
}

// Decrease moves the value down one step, saturating at the lower bound.
func (m *Meter) Decrease() {
	m.value = math.Max(m.lower, m.value-m.step)
}

// Apply dispatches an action. Hold leaves the value untouched.
func (m *Meter) Apply(a Action) error {
	switch a {
	case Increase:
		m.Increase()
	case Decrease:
		m.Decrease()
	case Hold:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidAction, int(a))
	}
	return nil
}

// Bounds returns the clamping bounds and step.
func (m *Meter) Bounds() (lower, upper, step float64) {
	return m.lower, m.upper, m.step
}
// #endregion meter
