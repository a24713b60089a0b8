package policy

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/mimipynb/agentDial/internal/params"
)

// #region contract
// Policy decides, per parameter, whether to increase, decrease or hold it,
// and learns from the reward observed after each turn.
//
// A Policy is stateful across turns and not safe for concurrent use. Own one
// instance per conversation.
type Policy interface {
	// Kind names the variant.
	Kind() Kind
	// NextAction picks an action per parameter. It never touches learned state.
	NextAction(obs Observation) (Decision, error)
	// Update records that action was taken for param and earned reward. It is
	// the only method that mutates learned state, and it either fully applies
	// or leaves state untouched.
	Update(param params.Name, action params.Action, reward float64, obs Observation) error
	// Run performs one full turn: decide, adjust, update, for every parameter.
	Run(obs Observation) (params.Values, error)
	// Values reads the current parameter values.
	Values() params.Values
	// LastDecision returns the actions applied by the last successful Run.
	LastDecision() Decision
	// Snapshot captures meters and learned state for checkpointing.
	Snapshot() Snapshot
	// Restore replaces meters and learned state from a snapshot after
	// validating its invariants.
	Restore(snap Snapshot) error

	learner
}

// learner is the per-variant half of a policy. Keeping it unexported closes
// the set of Policy implementations to this package.
type learner interface {
	validateDecide(obs Observation) error
	validateUpdate(obs Observation) error
	choose(param params.Name, obs Observation) params.Action
	learn(param params.Name, action params.Action, reward float64, obs Observation)
	captureLearned(snap *Snapshot)
	prepareLearned(snap Snapshot) (apply func(), err error)
}
// #endregion contract

// #region base
// base carries what every variant shares: its config, meters and random source.
type base struct {
	cfg  Config
	set  *params.Set
	rng  *rand.Rand
	last Decision
}

func newBase(cfg Config, set *params.Set) base {
	if set == nil {
		set = params.NewDefaultSet()
	}
	return base{
		cfg: cfg,
		set: set,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

func (b *base) Kind() Kind {
	return b.cfg.Kind
}

func (b *base) Values() params.Values {
	return b.set.Values()
}

func (b *base) LastDecision() Decision {
	out := make(Decision, len(b.last))
	for n, a := range b.last {
		out[n] = a
	}
	return out
}
// #endregion base

// #region constructor
// New builds the variant selected by cfg.Kind over set. A nil set gets the
// default meters.
func New(cfg Config, set *params.Set) (Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindBandit:
		return NewBandit(set, cfg.Bandit, cfg.Seed)
	case KindMarkov:
		return NewMarkov(set, cfg.Seed), nil
	case KindQLearning:
		return NewQLearning(set, cfg.QLearning, cfg.Seed)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
}

// FromSnapshot rebuilds a policy from a checkpoint.
func FromSnapshot(snap Snapshot) (Policy, error) {
	p, err := New(snap.Config, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := p.Restore(snap); err != nil {
		return nil, err
	}
	return p, nil
}
// #endregion constructor

// #region shared-ops
func nextAction(l learner, obs Observation) (Decision, error) {
	if err := l.validateDecide(obs); err != nil {
		return nil, err
	}
	d := make(Decision, len(params.Names))
	for _, n := range params.Names {
		d[n] = l.choose(n, obs)
	}
	return d, nil
}

func update(l learner, n params.Name, a params.Action, reward float64, obs Observation) error {
	if _, err := params.ParseName(string(n)); err != nil {
		return err
	}
	if !a.Valid() {
		return fmt.Errorf("%w: %d", params.ErrInvalidAction, int(a))
	}
	obs.Reward = reward
	if err := l.validateUpdate(obs); err != nil {
		return err
	}
	l.learn(n, a, reward, obs)
	return nil
}

// run applies one turn. Any failure restores the pre-turn snapshot so the
// caller keeps the previous parameter values and learned state.
func run(p Policy, b *base, obs Observation) (params.Values, error) {
	set := b.set
	if err := p.validateUpdate(obs); err != nil {
		return set.Values(), err
	}
	before := p.Snapshot()
	fail := func(err error) (params.Values, error) {
		if rerr := p.Restore(before); rerr != nil {
			return set.Values(), fmt.Errorf("%w (restore: %v)", err, rerr)
		}
		return set.Values(), err
	}

	taken := make(Decision, len(params.Names))
	for _, n := range params.Names {
		a := p.choose(n, obs)
		if err := set.Adjust(n, a); err != nil {
			return fail(err)
		}
		if err := p.Update(n, a, obs.Reward, obs); err != nil {
			return fail(err)
		}
		taken[n] = a
	}
	b.last = taken
	return set.Values(), nil
}

func snapshot(p Policy, b *base) Snapshot {
	snap := Snapshot{Config: b.cfg, Params: b.set.Snapshot()}
	p.captureLearned(&snap)
	return snap
}

func restore(p Policy, b *base, snap Snapshot) error {
	if snap.Config.Kind != b.cfg.Kind {
		return fmt.Errorf("%w: snapshot kind %q, policy kind %q", ErrCorruptSnapshot, snap.Config.Kind, b.cfg.Kind)
	}
	probe := params.NewDefaultSet()
	if err := probe.Restore(snap.Params); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	apply, err := p.prepareLearned(snap)
	if err != nil {
		return err
	}
	apply()
	return b.set.Restore(snap.Params)
}
// #endregion shared-ops

// #region helpers
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func checkFinite(reward float64) error {
	if !finite(reward) {
		return fmt.Errorf("%w: %g is not finite", ErrInvalidReward, reward)
	}
	return nil
}
// #endregion helpers
