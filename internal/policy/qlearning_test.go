package policy

import (
	"errors"
	"math"
	"testing"

	"github.com/mimipynb/agentDial/internal/params"
)

func newTestQ(t *testing.T, alpha, gamma, epsilon float64) *QLearningPolicy {
	t.Helper()
	p, err := NewQLearning(nil, QLearningConfig{Alpha: alpha, Gamma: gamma, Epsilon: epsilon, NumStates: 3}, 11)
	if err != nil {
		t.Fatalf("NewQLearning: %v", err)
	}
	return p
}

// #region bellman-tests
func TestQLearningBellmanFromZero(t *testing.T) {
	p := newTestQ(t, 0.5, 0.9, 0)
	obs := Observation{State: 0, NextState: 1}
	if err := p.Update(params.Temperature, params.Increase, 1, obs); err != nil {
		t.Fatalf("Update: %v", err)
	}
	q, _ := p.Q(params.Temperature, 0, params.Increase)
	if q != 0.5 {
		t.Fatalf("expected Q=0.5, got %g", q)
	}
}

func TestQLearningBellmanMatchesFormula(t *testing.T) {
	p := newTestQ(t, 0.3, 0.8, 0)
	tbl := p.tables[params.TopK]
	tbl.Set(2, int(params.Decrease), 0.4)
	tbl.Set(1, int(params.Increase), 0.2)
	tbl.Set(1, int(params.Hold), 1.1)
	tbl.Set(1, int(params.Decrease), -0.7)

	cases := []struct {
		state, next int
		action      params.Action
		reward      float64
	}{
		{2, 1, params.Decrease, 0.6},
		{1, 1, params.Hold, -0.2},
		{0, 2, params.Increase, 2},
		{2, 2, params.Decrease, 0},
	}
	for _, c := range cases {
		before, _ := p.Q(params.TopK, c.state, c.action)
		best := math.Inf(-1)
		for _, a := range params.Actions {
			v, _ := p.Q(params.TopK, c.next, a)
			best = math.Max(best, v)
		}
		want := before + 0.3*(c.reward+0.8*best-before)

		if err := p.Update(params.TopK, c.action, c.reward, Observation{State: c.state, NextState: c.next}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		got, _ := p.Q(params.TopK, c.state, c.action)
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("%+v: expected %g, got %g", c, want, got)
		}
	}
}
// #endregion bellman-tests

// #region state-tests
func TestQLearningUnknownState(t *testing.T) {
	p := newTestQ(t, 0.5, 0.9, 0)
	before := p.Snapshot()

	if _, err := p.NextAction(Observation{State: 3}); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState, got %v", err)
	}
	if err := p.Update(params.TopP, params.Hold, 1, Observation{State: 0, NextState: -1}); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState for next state, got %v", err)
	}
	assertSnapshotEqual(t, before, p.Snapshot())
}

func TestQLearningGreedyChoosesBestAction(t *testing.T) {
	p := newTestQ(t, 0.5, 0.9, 0)
	p.tables[params.TopP].Set(1, int(params.Hold), 0.9)
	p.tables[params.TopP].Set(1, int(params.Decrease), 0.4)

	d, err := p.NextAction(Observation{State: 1})
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
	if d[params.TopP] != params.Hold {
		t.Fatalf("expected hold, got %s", d[params.TopP])
	}
	if d[params.Temperature] != params.Increase {
		t.Fatalf("expected tie break to increase on zero table, got %s", d[params.Temperature])
	}
}

func TestQLearningConfigValidation(t *testing.T) {
	cases := []QLearningConfig{
		{Alpha: 0, Gamma: 0.9, Epsilon: 0.1, NumStates: 3},
		{Alpha: 1.1, Gamma: 0.9, Epsilon: 0.1, NumStates: 3},
		{Alpha: 0.5, Gamma: -0.1, Epsilon: 0.1, NumStates: 3},
		{Alpha: 0.5, Gamma: 1.01, Epsilon: 0.1, NumStates: 3},
		{Alpha: 0.5, Gamma: 0.9, Epsilon: 2, NumStates: 3},
		{Alpha: 0.5, Gamma: 0.9, Epsilon: 0.1, NumStates: 0},
		{Alpha: math.NaN(), Gamma: 0.9, Epsilon: 0.1, NumStates: 3},
	}
	for _, c := range cases {
		if _, err := NewQLearning(nil, c, 1); !errors.Is(err, params.ErrRange) {
			t.Errorf("%+v: expected ErrRange, got %v", c, err)
		}
	}
	if _, err := NewQLearning(nil, QLearningConfig{Alpha: 1, Gamma: 0, NumStates: 1}, 1); err != nil {
		t.Fatalf("boundary config rejected: %v", err)
	}
}
// #endregion state-tests
