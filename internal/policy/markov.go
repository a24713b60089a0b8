package policy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mimipynb/agentDial/internal/params"
)

const stochasticTolerance = 1e-9

// #region markov
// MarkovPolicy learns, per parameter, a row-stochastic transition matrix
// over actions: row i is the distribution of the next action after action i.
type MarkovPolicy struct {
	base
	matrices map[params.Name]*mat.Dense
	prev     map[params.Name]params.Action
}

// NewMarkov builds a Markov policy with identity transition matrices and no
// previous action.
func NewMarkov(set *params.Set, seed uint64) *MarkovPolicy {
	cfg := DefaultConfig()
	cfg.Kind = KindMarkov
	cfg.Seed = seed

	p := &MarkovPolicy{
		base:     newBase(cfg, set),
		matrices: make(map[params.Name]*mat.Dense, len(params.Names)),
		prev:     make(map[params.Name]params.Action, len(params.Names)),
	}
	for _, n := range params.Names {
		p.matrices[n] = identity()
	}
	return p
}

func identity() *mat.Dense {
	m := mat.NewDense(params.NumActions, params.NumActions, nil)
	for i := 0; i < params.NumActions; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Matrix returns a copy of the transition matrix for n.
func (p *MarkovPolicy) Matrix(n params.Name) (*mat.Dense, error) {
	m, ok := p.matrices[n]
	if !ok {
		return nil, fmt.Errorf("%w: %q", params.ErrInvalidParameter, n)
	}
	return mat.DenseCopyOf(m), nil
}

// Prev returns the last action recorded for n, if any.
func (p *MarkovPolicy) Prev(n params.Name) (params.Action, bool) {
	a, ok := p.prev[n]
	return a, ok
}
// #endregion markov

// #region contract-methods
func (p *MarkovPolicy) NextAction(obs Observation) (Decision, error) {
	return nextAction(p, obs)
}

func (p *MarkovPolicy) Update(n params.Name, a params.Action, reward float64, obs Observation) error {
	return update(p, n, a, reward, obs)
}

func (p *MarkovPolicy) Run(obs Observation) (params.Values, error) {
	return run(p, &p.base, obs)
}

func (p *MarkovPolicy) Snapshot() Snapshot {
	return snapshot(p, &p.base)
}

func (p *MarkovPolicy) Restore(snap Snapshot) error {
	return restore(p, &p.base, snap)
}
// #endregion contract-methods

// #region selection
func (p *MarkovPolicy) validateDecide(Observation) error {
	return nil
}

// validateUpdate rejects negative rewards: they could drive a row sum
// negative and break normalisation.
func (p *MarkovPolicy) validateUpdate(obs Observation) error {
	if err := checkFinite(obs.Reward); err != nil {
		return err
	}
	if obs.Reward < 0 {
		return fmt.Errorf("%w: markov policy needs a non-negative reward, got %g", ErrInvalidReward, obs.Reward)
	}
	return nil
}

// choose picks uniformly on a cold start, otherwise the most likely
// successor of the previous action with ties going to the lowest index.
func (p *MarkovPolicy) choose(n params.Name, _ Observation) params.Action {
	prev, ok := p.prev[n]
	if !ok {
		return params.Action(p.rng.IntN(params.NumActions))
	}
	return params.Action(floats.MaxIdx(p.matrices[n].RawRowView(int(prev))))
}
// #endregion selection

// #region learning
func (p *MarkovPolicy) learn(n params.Name, a params.Action, reward float64, _ Observation) {
	if prev, ok := p.prev[n]; ok {
		row := p.matrices[n].RawRowView(int(prev))
		row[a] += reward
		normalizeRow(row)
	}
	p.prev[n] = a
}

// normalizeRow scales row to sum to one. A zero row becomes uniform.
func normalizeRow(row []float64) {
	sum := floats.Sum(row)
	if sum == 0 {
		for i := range row {
			row[i] = 1 / float64(len(row))
		}
		return
	}
	floats.Scale(1/sum, row)
}

func (p *MarkovPolicy) captureLearned(snap *Snapshot) {
	st := &MarkovState{
		Matrices: make(map[params.Name][params.NumActions][params.NumActions]float64, len(p.matrices)),
		Prev:     make(map[params.Name]params.Action, len(p.prev)),
	}
	for n, m := range p.matrices {
		var rows [params.NumActions][params.NumActions]float64
		for i := range rows {
			copy(rows[i][:], m.RawRowView(i))
		}
		st.Matrices[n] = rows
	}
	for n, a := range p.prev {
		st.Prev[n] = a
	}
	snap.Markov = st
}

func (p *MarkovPolicy) prepareLearned(snap Snapshot) (func(), error) {
	if snap.Markov == nil {
		return nil, fmt.Errorf("%w: missing markov section", ErrCorruptSnapshot)
	}
	matrices := make(map[params.Name]*mat.Dense, len(params.Names))
	for _, n := range params.Names {
		rows, ok := snap.Markov.Matrices[n]
		if !ok {
			return nil, fmt.Errorf("%w: no transition matrix for %s", ErrCorruptSnapshot, n)
		}
		m := mat.NewDense(params.NumActions, params.NumActions, nil)
		for i, row := range rows {
			for _, v := range row {
				if !finite(v) || v < 0 {
					return nil, fmt.Errorf("%w: %s row %d has entry %g", ErrCorruptSnapshot, n, i, v)
				}
			}
			if sum := floats.Sum(row[:]); math.Abs(sum-1) > stochasticTolerance {
				return nil, fmt.Errorf("%w: %s row %d sums to %g", ErrCorruptSnapshot, n, i, sum)
			}
			m.SetRow(i, row[:])
		}
		matrices[n] = m
	}
	prev := make(map[params.Name]params.Action, len(snap.Markov.Prev))
	for n, a := range snap.Markov.Prev {
		if _, err := params.ParseName(string(n)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		if !a.Valid() {
			return nil, fmt.Errorf("%w: %s previous action %d", ErrCorruptSnapshot, n, int(a))
		}
		prev[n] = a
	}
	return func() {
		p.matrices = matrices
		p.prev = prev
	}, nil
}
// #endregion learning
