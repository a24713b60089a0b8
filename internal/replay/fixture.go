package replay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
)

// #region fixture-types
// Fixture is the top-level YAML structure for a replay fixture. Policy and
// Params sections are merged over the defaults.
type Fixture struct {
	Description string        `yaml:"description"`
	Policy      policy.Config `yaml:"policy"`
	Params      params.Specs  `yaml:"params"`
	Turns       []FixtureTurn `yaml:"turns"`
}

// FixtureTurn is one recorded observation plus an optional expected outcome.
type FixtureTurn struct {
	TurnID    string         `yaml:"turn_id"`
	Reward    float64        `yaml:"reward"`
	State     int            `yaml:"state"`
	NextState int            `yaml:"next_state"`
	Expect    *FixtureExpect `yaml:"expect,omitempty"`
}

// FixtureExpect is the expected outcome of a turn. Nil fields are not checked.
type FixtureExpect struct {
	Outcome string          `yaml:"outcome,omitempty"` // "applied" | "rejected"
	Actions policy.Decision `yaml:"actions,omitempty"`
	Values  *params.Values  `yaml:"values,omitempty"`
}
// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f := Fixture{Policy: policy.DefaultConfig(), Params: params.DefaultSpecs()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToTurn converts a FixtureTurn to a replay Turn.
func (ft *FixtureTurn) ToTurn() Turn {
	return Turn{
		TurnID: ft.TurnID,
		Observation: policy.Observation{
			Reward:    ft.Reward,
			State:     ft.State,
			NextState: ft.NextState,
		},
	}
}

// ToTurns converts every fixture turn.
func (f *Fixture) ToTurns() []Turn {
	turns := make([]Turn, len(f.Turns))
	for i := range f.Turns {
		turns[i] = f.Turns[i].ToTurn()
	}
	return turns
}
// #endregion fixture-loader
