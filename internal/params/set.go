package params

import "fmt"

// #region set
// Set owns one meter per tunable parameter. Each Set is built with its own
// meters; nothing is shared between instances.
type Set struct {
	temperature *Meter
	topK        *Meter
	topP        *Meter
}

// NewSet builds fresh meters from specs and checks every meter range lies
// inside its parameter's domain.
func NewSet(specs Specs) (*Set, error) {
	s := &Set{}
	for _, n := range Names {
		spec, _ := specs.For(n)
		m, err := newDomainMeter(n, spec.Default, spec.Lower, spec.Upper, spec.Step)
		if err != nil {
			return nil, err
		}
		*s.slot(n) = m
	}
	return s, nil
}

// NewDefaultSet builds a Set from DefaultSpecs.
func NewDefaultSet() *Set {
	s, err := NewSet(DefaultSpecs())
	if err != nil {
		panic(fmt.Sprintf("default specs invalid: %v", err))
	}
	return s
}

func newDomainMeter(n Name, value, lower, upper, step float64) (*Meter, error) {
	m, err := NewMeter(value, lower, upper, step)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n, err)
	}
	d := Domains[n]
	if !d.Contains(lower) || !d.Contains(upper) {
		return nil, fmt.Errorf("%w: %s bounds [%g, %g] outside domain %s", ErrRange, n, lower, upper, d)
	}
	return m, nil
}

func (s *Set) slot(n Name) **Meter {
	switch n {
	case Temperature:
		return &s.temperature
	case TopK:
		return &s.topK
	case TopP:
		return &s.topP
	}
	return nil
}

// Meter returns the named meter.
func (s *Set) Meter(n Name) (*Meter, error) {
	p := s.slot(n)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidParameter, n)
	}
	return *p, nil
}
// #endregion set

// #region adjust
// Adjust applies action to the named meter. Hold is a no-op.
func (s *Set) Adjust(n Name, a Action) error {
	m, err := s.Meter(n)
	if err != nil {
		return err
	}
	return m.Apply(a)
}
// #endregion adjust

// #region values
// Values reads every meter.
func (s *Set) Values() Values {
	return Values{
		Temperature: s.temperature.Read(),
		TopK:        s.topK.Read(),
		TopP:        s.topP.Read(),
	}
}
// #endregion values

// #region snapshot
// MeterState is the serialisable form of a Meter.
type MeterState struct {
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Step  float64 `json:"step"`
}

// SetState is the serialisable form of a Set.
type SetState struct {
	Temperature MeterState `json:"temperature"`
	TopK        MeterState `json:"top_k"`
	TopP        MeterState `json:"top_p"`
}

// Values reads the stored value of every meter.
func (st SetState) Values() Values {
	return Values{
		Temperature: st.Temperature.Value,
		TopK:        st.TopK.Value,
		TopP:        st.TopP.Value,
	}
}

// Specs returns meter specs that rebuild this state, with each stored value
// as the default.
func (st SetState) Specs() Specs {
	spec := func(m MeterState) MeterSpec {
		return MeterSpec{Default: m.Value, Lower: m.Lower, Upper: m.Upper, Step: m.Step}
	}
	return Specs{Temperature: spec(st.Temperature), TopK: spec(st.TopK), TopP: spec(st.TopP)}
}

func (st *SetState) slot(n Name) *MeterState {
	switch n {
	case Temperature:
		return &st.Temperature
	case TopK:
		return &st.TopK
	case TopP:
		return &st.TopP
	}
	return nil
}

// Snapshot captures every meter.
func (s *Set) Snapshot() SetState {
	var st SetState
	for _, n := range Names {
		m := *s.slot(n)
		*st.slot(n) = MeterState{Value: m.value, Lower: m.lower, Upper: m.upper, Step: m.step}
	}
	return st
}

// Restore replaces every meter from st after validating it. On error the Set
// is left unchanged.
func (s *Set) Restore(st SetState) error {
	var fresh [len(Names)]*Meter
	for i, n := range Names {
		ms := st.slot(n)
		m, err := newDomainMeter(n, ms.Value, ms.Lower, ms.Upper, ms.Step)
		if err != nil {
			return err
		}
		fresh[i] = m
	}
	for i, n := range Names {
		*s.slot(n) = fresh[i]
	}
	return nil
}
// #endregion snapshot
