package policy

import (
	"fmt"

	"github.com/mimipynb/agentDial/internal/params"
)

// #region kind
// Kind names a policy variant.
type Kind string

const (
	KindBandit    Kind = "bandit"
	KindMarkov    Kind = "markov"
	KindQLearning Kind = "qlearning"
)
// #endregion kind

// #region method
// Method selects the bandit arm-selection rule.
type Method string

const (
	MethodEpsilonGreedy Method = "epsilon-greedy"
	MethodThompson      Method = "thompson"
	MethodUCB           Method = "ucb"
)
// #endregion method

// #region observation
// Observation is what the reward collaborator reports after a turn.
// State and NextState are only read by the Q-learning policy.
type Observation struct {
	Reward    float64 `json:"reward" yaml:"reward"`
	State     int     `json:"state" yaml:"state"`
	NextState int     `json:"next_state" yaml:"next_state"`
}

// Decision maps each parameter to the action chosen for it.
type Decision map[params.Name]params.Action
// #endregion observation

// #region config
// BanditConfig configures BanditPolicy.
type BanditConfig struct {
	Method  Method  `yaml:"method" json:"method"`
	Epsilon float64 `yaml:"epsilon" json:"epsilon"` // exploration rate for epsilon-greedy
	C       float64 `yaml:"c" json:"c"`             // UCB exploration weight
}

// QLearningConfig configures QLearningPolicy.
type QLearningConfig struct {
	Alpha     float64 `yaml:"alpha" json:"alpha"`     // learning rate, (0, 1]
	Gamma     float64 `yaml:"gamma" json:"gamma"`     // discount factor, [0, 1]
	Epsilon   float64 `yaml:"epsilon" json:"epsilon"` // exploration rate, [0, 1]
	NumStates int     `yaml:"num_states" json:"num_states"`
}

// Config selects and configures one policy variant. It is read once at
// construction.
type Config struct {
	Kind      Kind            `yaml:"kind" json:"kind"`
	Seed      uint64          `yaml:"seed" json:"seed"`
	Bandit    BanditConfig    `yaml:"bandit" json:"bandit"`
	QLearning QLearningConfig `yaml:"qlearning" json:"qlearning"`
}

// DefaultConfig returns an epsilon-greedy bandit with stock Q-learning
// settings filled in for when Kind is switched.
func DefaultConfig() Config {
	return Config{
		Kind: KindBandit,
		Seed: 1,
		Bandit: BanditConfig{
			Method:  MethodEpsilonGreedy,
			Epsilon: 0.1,
			C:       2.0,
		},
		QLearning: QLearningConfig{
			Alpha:     0.1,
			Gamma:     0.9,
			Epsilon:   0.1,
			NumStates: params.NumActions,
		},
	}
}

// Validate checks the section selected by Kind.
func (c Config) Validate() error {
	switch c.Kind {
	case KindBandit:
		return c.Bandit.validate()
	case KindMarkov:
		return nil
	case KindQLearning:
		return c.QLearning.validate()
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
}

func (c BanditConfig) validate() error {
	switch c.Method {
	case MethodEpsilonGreedy, MethodThompson, MethodUCB:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, c.Method)
	}
	if !(c.Epsilon >= 0 && c.Epsilon <= 1) {
		return fmt.Errorf("%w: epsilon %g outside [0, 1]", params.ErrRange, c.Epsilon)
	}
	if !(c.C >= 0) {
		return fmt.Errorf("%w: ucb weight %g must be non-negative", params.ErrRange, c.C)
	}
	return nil
}

func (c QLearningConfig) validate() error {
	if !(c.Alpha > 0 && c.Alpha <= 1) {
		return fmt.Errorf("%w: alpha %g outside (0, 1]", params.ErrRange, c.Alpha)
	}
	if !(c.Gamma >= 0 && c.Gamma <= 1) {
		return fmt.Errorf("%w: gamma %g outside [0, 1]", params.ErrRange, c.Gamma)
	}
	if !(c.Epsilon >= 0 && c.Epsilon <= 1) {
		return fmt.Errorf("%w: epsilon %g outside [0, 1]", params.ErrRange, c.Epsilon)
	}
	if c.NumStates < 1 {
		return fmt.Errorf("%w: num_states %d must be positive", params.ErrRange, c.NumStates)
	}
	return nil
}
// #endregion config

// #region snapshot
// ArmState holds one bandit arm's statistics.
type ArmState struct {
	Pulls int     `json:"pulls"`
	Mean  float64 `json:"mean"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// BanditState is the learned state of a BanditPolicy.
type BanditState struct {
	Arms map[params.Name][params.NumActions]ArmState `json:"arms"`
}

// MarkovState is the learned state of a MarkovPolicy. A parameter missing
// from Prev has no previous action yet.
type MarkovState struct {
	Matrices map[params.Name][params.NumActions][params.NumActions]float64 `json:"matrices"`
	Prev     map[params.Name]params.Action                                 `json:"prev"`
}

// QLearningState is the learned state of a QLearningPolicy.
type QLearningState struct {
	NumStates int                                          `json:"num_states"`
	Tables    map[params.Name][][params.NumActions]float64 `json:"tables"`
}

// Snapshot is the checkpointable state of a policy: its configuration,
// parameter meters and exactly one learned-state section.
type Snapshot struct {
	Config    Config          `json:"config"`
	Params    params.SetState `json:"params"`
	Bandit    *BanditState    `json:"bandit,omitempty"`
	Markov    *MarkovState    `json:"markov,omitempty"`
	QLearning *QLearningState `json:"qlearning,omitempty"`
}
// #endregion snapshot
