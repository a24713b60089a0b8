package policy

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mimipynb/agentDial/internal/params"
)

// #region qlearning
// QLearningPolicy keeps one Q-table per parameter, indexed by
// (observed state, action), and chooses actions epsilon-greedily.
type QLearningPolicy struct {
	base
	alpha     float64
	gamma     float64
	epsilon   float64
	numStates int
	tables    map[params.Name]*mat.Dense
}

// NewQLearning builds zeroed Q-tables of cfg.NumStates rows.
func NewQLearning(set *params.Set, cfg QLearningConfig, seed uint64) (*QLearningPolicy, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	full := DefaultConfig()
	full.Kind = KindQLearning
	full.Seed = seed
	full.QLearning = cfg

	p := &QLearningPolicy{
		base:      newBase(full, set),
		alpha:     cfg.Alpha,
		gamma:     cfg.Gamma,
		epsilon:   cfg.Epsilon,
		numStates: cfg.NumStates,
		tables:    make(map[params.Name]*mat.Dense, len(params.Names)),
	}
	for _, n := range params.Names {
		p.tables[n] = mat.NewDense(cfg.NumStates, params.NumActions, nil)
	}
	return p, nil
}

// Q returns the value estimate for (state, action) on parameter n.
func (p *QLearningPolicy) Q(n params.Name, state int, a params.Action) (float64, error) {
	t, ok := p.tables[n]
	if !ok {
		return 0, fmt.Errorf("%w: %q", params.ErrInvalidParameter, n)
	}
	if err := p.checkState(state); err != nil {
		return 0, err
	}
	if !a.Valid() {
		return 0, fmt.Errorf("%w: %d", params.ErrInvalidAction, int(a))
	}
	return t.At(state, int(a)), nil
}

// NumStates is the size of the state domain.
func (p *QLearningPolicy) NumStates() int {
	return p.numStates
}
// #endregion qlearning

// #region contract-methods
func (p *QLearningPolicy) NextAction(obs Observation) (Decision, error) {
	return nextAction(p, obs)
}

func (p *QLearningPolicy) Update(n params.Name, a params.Action, reward float64, obs Observation) error {
	return update(p, n, a, reward, obs)
}

func (p *QLearningPolicy) Run(obs Observation) (params.Values, error) {
	return run(p, &p.base, obs)
}

func (p *QLearningPolicy) Snapshot() Snapshot {
	return snapshot(p, &p.base)
}

func (p *QLearningPolicy) Restore(snap Snapshot) error {
	return restore(p, &p.base, snap)
}
// #endregion contract-methods

// #region selection
func (p *QLearningPolicy) checkState(s int) error {
	if s < 0 || s >= p.numStates {
		return fmt.Errorf("%w: %d outside [0, %d)", ErrUnknownState, s, p.numStates)
	}
	return nil
}

func (p *QLearningPolicy) validateDecide(obs Observation) error {
	return p.checkState(obs.State)
}

func (p *QLearningPolicy) validateUpdate(obs Observation) error {
	if err := checkFinite(obs.Reward); err != nil {
		return err
	}
	if err := p.checkState(obs.State); err != nil {
		return err
	}
	if err := p.checkState(obs.NextState); err != nil {
		return fmt.Errorf("next state: %w", err)
	}
	return nil
}

func (p *QLearningPolicy) choose(n params.Name, obs Observation) params.Action {
	if p.epsilon > 0 && p.rng.Float64() < p.epsilon {
		return params.Action(p.rng.IntN(params.NumActions))
	}
	return params.Action(floats.MaxIdx(p.tables[n].RawRowView(obs.State)))
}
// #endregion selection

// #region learning
// learn applies the Bellman update
// Q[s,a] += alpha * (reward + gamma * max_a' Q[s',a'] - Q[s,a]).
func (p *QLearningPolicy) learn(n params.Name, a params.Action, reward float64, obs Observation) {
	t := p.tables[n]
	best := floats.Max(t.RawRowView(obs.NextState))
	q := t.At(obs.State, int(a))
	t.Set(obs.State, int(a), q+p.alpha*(reward+p.gamma*best-q))
}

func (p *QLearningPolicy) captureLearned(snap *Snapshot) {
	st := &QLearningState{
		NumStates: p.numStates,
		Tables:    make(map[params.Name][][params.NumActions]float64, len(p.tables)),
	}
	for n, t := range p.tables {
		rows := make([][params.NumActions]float64, p.numStates)
		for s := range rows {
			copy(rows[s][:], t.RawRowView(s))
		}
		st.Tables[n] = rows
	}
	snap.QLearning = st
}

func (p *QLearningPolicy) prepareLearned(snap Snapshot) (func(), error) {
	st := snap.QLearning
	if st == nil {
		return nil, fmt.Errorf("%w: missing qlearning section", ErrCorruptSnapshot)
	}
	if st.NumStates != p.numStates {
		return nil, fmt.Errorf("%w: snapshot has %d states, policy has %d", ErrCorruptSnapshot, st.NumStates, p.numStates)
	}
	tables := make(map[params.Name]*mat.Dense, len(params.Names))
	for _, n := range params.Names {
		rows, ok := st.Tables[n]
		if !ok || len(rows) != p.numStates {
			return nil, fmt.Errorf("%w: Q-table for %s missing or mis-sized", ErrCorruptSnapshot, n)
		}
		t := mat.NewDense(p.numStates, params.NumActions, nil)
		for s, row := range rows {
			for _, v := range row {
				if !finite(v) {
					return nil, fmt.Errorf("%w: %s state %d has non-finite value", ErrCorruptSnapshot, n, s)
				}
			}
			t.SetRow(s, row[:])
		}
		tables[n] = t
	}
	return func() { p.tables = tables }, nil
}
// #endregion learning
