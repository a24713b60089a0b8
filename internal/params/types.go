package params

import (
	"fmt"
	"math"
)

// #region names
// Name identifies one tunable generation parameter.
type Name string

const (
	Temperature Name = "temperature"
	TopK        Name = "top_k"
	TopP        Name = "top_p"
)

// Names is the canonical parameter order. Policies iterate in this order.
var Names = [3]Name{Temperature, TopK, TopP}

// ParseName resolves a parameter name.
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidParameter, s)
}
// #endregion names

// #region action
// Action is one of increase, decrease or hold. The integer value doubles as
// the row/column index into transition matrices and Q-tables.
type Action int

const (
	Increase Action = iota
	Decrease
	Hold
)

// NumActions is the size of the action space.
const NumActions = 3

// Actions lists every action in index order.
var Actions = [NumActions]Action{Increase, Decrease, Hold}

var actionLabels = [NumActions]string{"increase", "decrease", "hold"}

// Valid reports whether a is inside the closed action set.
func (a Action) Valid() bool {
	return a >= Increase && a <= Hold
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionLabels[a]
}

// MarshalText encodes the action as its label.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action label.
func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction resolves an action label.
func ParseAction(s string) (Action, error) {
	for i, l := range actionLabels {
		if l == s {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}
// #endregion action

// #region domain
// Domain is the admissible interval of a parameter. An open lower end means
// the bound itself is excluded.
type Domain struct {
	Lower     float64
	Upper     float64
	OpenLower bool
}

// Contains reports whether v lies inside the domain.
func (d Domain) Contains(v float64) bool {
	if math.IsNaN(v) || v > d.Upper {
		return false
	}
	if d.OpenLower {
		return v > d.Lower
	}
	return v >= d.Lower
}

func (d Domain) String() string {
	open := "["
	if d.OpenLower {
		open = "("
	}
	return fmt.Sprintf("%s%g, %g]", open, d.Lower, d.Upper)
}

// Domains holds the fixed admissible range of each parameter.
var Domains = map[Name]Domain{
	Temperature: {Lower: 0, Upper: 2, OpenLower: true},
	TopK:        {Lower: 1, Upper: 1000},
	TopP:        {Lower: 0, Upper: 1, OpenLower: true},
}
// #endregion domain

// #region meter-spec
// MeterSpec describes how a meter is built: its starting value, clamping
// bounds and step size.
type MeterSpec struct {
	Default float64 `yaml:"default" json:"default"`
	Lower   float64 `yaml:"lower" json:"lower"`
	Upper   float64 `yaml:"upper" json:"upper"`
	Step    float64 `yaml:"step" json:"step"`
}

// Specs holds one MeterSpec per parameter.
type Specs struct {
	Temperature MeterSpec `yaml:"temperature" json:"temperature"`
	TopK        MeterSpec `yaml:"top_k" json:"top_k"`
	TopP        MeterSpec `yaml:"top_p" json:"top_p"`
}

// DefaultSpecs returns the stock meter layout. The lower floors of
// temperature and top_p keep clamping away from their excluded zero bound.
func DefaultSpecs() Specs {
	return Specs{
		Temperature: MeterSpec{Default: 0.8, Lower: 0.05, Upper: 2, Step: 0.25},
		TopK:        MeterSpec{Default: 50, Lower: 1, Upper: 1000, Step: 10},
		TopP:        MeterSpec{Default: 1.0, Lower: 0.1, Upper: 1.0, Step: 0.1},
	}
}

// For returns the Spec of the named parameter.
func (s Specs) For(n Name) (MeterSpec, error) {
	switch n {
	case Temperature:
		return s.Temperature, nil
	case TopK:
		return s.TopK, nil
	case TopP:
		return s.TopP, nil
	}
	return MeterSpec{}, fmt.Errorf("%w: %q", ErrInvalidParameter, n)
}
// #endregion meter-spec

// #region values
// Values is the outbound parameter triple handed to the generation wrapper.
type Values struct {
	Temperature float64 `yaml:"temperature" json:"temperature"`
	TopK        float64 `yaml:"top_k" json:"top_k"`
	TopP        float64 `yaml:"top_p" json:"top_p"`
}

// Map returns the values keyed by parameter name.
func (v Values) Map() map[string]float64 {
	return map[string]float64{
		string(Temperature): v.Temperature,
		string(TopK):        v.TopK,
		string(TopP):        v.TopP,
	}
}

// Get returns the value of the named parameter.
func (v Values) Get(n Name) (float64, error) {
	switch n {
	case Temperature:
		return v.Temperature, nil
	case TopK:
		return v.TopK, nil
	case TopP:
		return v.TopP, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidParameter, n)
}
// #endregion values
