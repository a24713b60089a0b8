package policy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mimipynb/agentDial/internal/params"
)

// #region bandit
// BanditPolicy runs one independent three-armed bandit per parameter.
// Arms are the actions increase, decrease and hold.
type BanditPolicy struct {
	base
	method  Method
	epsilon float64
	c       float64
	arms    map[params.Name]*[params.NumActions]ArmState
}

// NewBandit builds a bandit over set with every arm unpulled and a Beta(1, 1)
// prior for Thompson sampling.
func NewBandit(set *params.Set, cfg BanditConfig, seed uint64) (*BanditPolicy, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	full := DefaultConfig()
	full.Kind = KindBandit
	full.Seed = seed
	full.Bandit = cfg

	p := &BanditPolicy{
		base:    newBase(full, set),
		method:  cfg.Method,
		epsilon: cfg.Epsilon,
		c:       cfg.C,
		arms:    make(map[params.Name]*[params.NumActions]ArmState, len(params.Names)),
	}
	for _, n := range params.Names {
		p.arms[n] = freshArms()
	}
	return p, nil
}

func freshArms() *[params.NumActions]ArmState {
	var arms [params.NumActions]ArmState
	for i := range arms {
		arms[i] = ArmState{Alpha: 1, Beta: 1}
	}
	return &arms
}

// Arm returns a copy of one arm's statistics.
func (p *BanditPolicy) Arm(n params.Name, a params.Action) (ArmState, error) {
	arms, ok := p.arms[n]
	if !ok {
		return ArmState{}, fmt.Errorf("%w: %q", params.ErrInvalidParameter, n)
	}
	if !a.Valid() {
		return ArmState{}, fmt.Errorf("%w: %d", params.ErrInvalidAction, int(a))
	}
	return arms[a], nil
}
// #endregion bandit

// #region contract-methods
func (p *BanditPolicy) NextAction(obs Observation) (Decision, error) {
	return nextAction(p, obs)
}

func (p *BanditPolicy) Update(n params.Name, a params.Action, reward float64, obs Observation) error {
	return update(p, n, a, reward, obs)
}

func (p *BanditPolicy) Run(obs Observation) (params.Values, error) {
	return run(p, &p.base, obs)
}

func (p *BanditPolicy) Snapshot() Snapshot {
	return snapshot(p, &p.base)
}

func (p *BanditPolicy) Restore(snap Snapshot) error {
	return restore(p, &p.base, snap)
}
// #endregion contract-methods

// #region selection
func (p *BanditPolicy) validateDecide(Observation) error {
	return nil
}

func (p *BanditPolicy) validateUpdate(obs Observation) error {
	if err := checkFinite(obs.Reward); err != nil {
		return err
	}
	if p.method == MethodThompson && (obs.Reward < 0 || obs.Reward > 1) {
		return fmt.Errorf("%w: thompson sampling needs a reward in [0, 1], got %g", ErrInvalidReward, obs.Reward)
	}
	return nil
}

func (p *BanditPolicy) choose(n params.Name, _ Observation) params.Action {
	arms := p.arms[n]
	switch p.method {
	case MethodUCB:
		return p.chooseUCB(arms)
	case MethodThompson:
		return p.chooseThompson(arms)
	default:
		return p.chooseEpsilonGreedy(arms)
	}
}

// chooseEpsilonGreedy exploits the best running mean; ties go to the lowest index.
func (p *BanditPolicy) chooseEpsilonGreedy(arms *[params.NumActions]ArmState) params.Action {
	if p.epsilon > 0 && p.rng.Float64() < p.epsilon {
		return params.Action(p.rng.IntN(params.NumActions))
	}
	means := make([]float64, params.NumActions)
	for i, arm := range arms {
		means[i] = arm.Mean
	}
	return params.Action(floats.MaxIdx(means))
}

// chooseUCB pulls any unpulled arm first, then maximises mean + c*sqrt(ln t / n).
func (p *BanditPolicy) chooseUCB(arms *[params.NumActions]ArmState) params.Action {
	total := 0
	for i, arm := range arms {
		if arm.Pulls == 0 {
			return params.Action(i)
		}
		total += arm.Pulls
	}
	scores := make([]float64, params.NumActions)
	for i, arm := range arms {
		scores[i] = arm.Mean + p.c*math.Sqrt(math.Log(float64(total))/float64(arm.Pulls))
	}
	return params.Action(floats.MaxIdx(scores))
}

// chooseThompson draws once from each arm's Beta posterior.
func (p *BanditPolicy) chooseThompson(arms *[params.NumActions]ArmState) params.Action {
	samples := make([]float64, params.NumActions)
	for i, arm := range arms {
		dist := distuv.Beta{Alpha: arm.Alpha, Beta: arm.Beta, Src: p.rng}
		samples[i] = dist.Rand()
	}
	return params.Action(floats.MaxIdx(samples))
}
// #endregion selection

// #region learning
func (p *BanditPolicy) learn(n params.Name, a params.Action, reward float64, _ Observation) {
	arm := &p.arms[n][a]
	arm.Pulls++
	arm.Mean += (reward - arm.Mean) / float64(arm.Pulls)
	if p.method == MethodThompson {
		arm.Alpha += reward
		arm.Beta += 1 - reward
	}
}

func (p *BanditPolicy) captureLearned(snap *Snapshot) {
	st := &BanditState{Arms: make(map[params.Name][params.NumActions]ArmState, len(p.arms))}
	for n, arms := range p.arms {
		st.Arms[n] = *arms
	}
	snap.Bandit = st
}

func (p *BanditPolicy) prepareLearned(snap Snapshot) (func(), error) {
	if snap.Bandit == nil {
		return nil, fmt.Errorf("%w: missing bandit section", ErrCorruptSnapshot)
	}
	fresh := make(map[params.Name]*[params.NumActions]ArmState, len(params.Names))
	for _, n := range params.Names {
		arms, ok := snap.Bandit.Arms[n]
		if !ok {
			return nil, fmt.Errorf("%w: no arms for %s", ErrCorruptSnapshot, n)
		}
		for i, arm := range arms {
			if arm.Pulls < 0 || !finite(arm.Mean) || !(arm.Alpha > 0) || !(arm.Beta > 0) ||
				math.IsInf(arm.Alpha, 0) || math.IsInf(arm.Beta, 0) {
				return nil, fmt.Errorf("%w: %s arm %s has invalid statistics %+v",
					ErrCorruptSnapshot, n, params.Action(i), arm)
			}
		}
		copied := arms
		fresh[n] = &copied
	}
	return func() { p.arms = fresh }, nil
}
// #endregion learning
