package policy

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/mimipynb/agentDial/internal/params"
)

func assertSnapshotEqual(t *testing.T, want, got Snapshot) {
	t.Helper()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("learned state changed:\nwant %+v\ngot  %+v", want, got)
	}
}

func allKinds(t *testing.T) []Policy {
	t.Helper()
	var out []Policy
	for _, kind := range []Kind{KindBandit, KindMarkov, KindQLearning} {
		cfg := DefaultConfig()
		cfg.Kind = kind
		p, err := New(cfg, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		out = append(out, p)
	}
	return out
}

// #region factory-tests
func TestNewSelectsVariant(t *testing.T) {
	for _, p := range allKinds(t) {
		switch p.(type) {
		case *BanditPolicy:
			if p.Kind() != KindBandit {
				t.Fatalf("bandit reports kind %s", p.Kind())
			}
		case *MarkovPolicy:
			if p.Kind() != KindMarkov {
				t.Fatalf("markov reports kind %s", p.Kind())
			}
		case *QLearningPolicy:
			if p.Kind() != KindQLearning {
				t.Fatalf("qlearning reports kind %s", p.Kind())
			}
		default:
			t.Fatalf("unexpected type %T", p)
		}
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = "sarsa"
	if _, err := New(cfg, nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
// #endregion factory-tests

// #region run-tests
func TestRunUpdatesEveryParameterOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bandit.Epsilon = 0
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b := p.(*BanditPolicy)

	vals, err := p.Run(Observation{Reward: 0.4})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, n := range params.Names {
		total := 0
		for _, a := range params.Actions {
			arm, _ := b.Arm(n, a)
			total += arm.Pulls
		}
		if total != 1 {
			t.Fatalf("%s: expected exactly one update, got %d", n, total)
		}
		// All means start equal, so epsilon=0 picks increase and records it.
		inc, _ := b.Arm(n, params.Increase)
		if inc.Pulls != 1 || inc.Mean != 0.4 {
			t.Fatalf("%s: update did not record the applied action: %+v", n, inc)
		}
	}
	if vals != p.Values() {
		t.Fatalf("Run returned %+v, policy holds %+v", vals, p.Values())
	}
	if vals.TopK != 60 || vals.TopP != 1.0 {
		t.Fatalf("unexpected values after increase: %+v", vals)
	}
}

func TestRunKeepsValuesInsideBounds(t *testing.T) {
	for _, p := range allKinds(t) {
		for i := 0; i < 200; i++ {
			obs := Observation{Reward: float64(i%5) / 4, State: i % 3, NextState: (i + 1) % 3}
			v, err := p.Run(obs)
			if err != nil {
				t.Fatalf("%s turn %d: %v", p.Kind(), i, err)
			}
			if v.Temperature <= 0 || v.Temperature > 2 || v.TopK < 1 || v.TopK > 1000 || v.TopP <= 0 || v.TopP > 1 {
				t.Fatalf("%s turn %d: values out of domain %+v", p.Kind(), i, v)
			}
		}
	}
}

func TestRunFailureLeavesStateUntouched(t *testing.T) {
	cases := []struct {
		kind Kind
		obs  Observation
		want error
	}{
		{KindMarkov, Observation{Reward: -1}, ErrInvalidReward},
		{KindQLearning, Observation{Reward: 1, State: 9}, ErrUnknownState},
		{KindQLearning, Observation{Reward: 1, State: 0, NextState: 5}, ErrUnknownState},
	}
	for _, c := range cases {
		cfg := DefaultConfig()
		cfg.Kind = c.kind
		p, _ := New(cfg, nil)
		p.Run(Observation{Reward: 0.5, State: 1, NextState: 2})
		before := p.Snapshot()

		v, err := p.Run(c.obs)
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: expected %v, got %v", c.kind, c.want, err)
		}
		if v != p.Values() {
			t.Fatalf("%s: failed run returned %+v, policy holds %+v", c.kind, v, p.Values())
		}
		assertSnapshotEqual(t, before, p.Snapshot())
	}
}

func TestNextActionDoesNotMutateLearnedState(t *testing.T) {
	for _, p := range allKinds(t) {
		p.Run(Observation{Reward: 0.8, State: 0, NextState: 1})
		before := p.Snapshot()
		for i := 0; i < 25; i++ {
			if _, err := p.NextAction(Observation{State: 1}); err != nil {
				t.Fatalf("%s: NextAction: %v", p.Kind(), err)
			}
		}
		assertSnapshotEqual(t, before, p.Snapshot())
	}
}
// #endregion run-tests

// #region snapshot-tests
func TestSnapshotRoundTripThroughJSON(t *testing.T) {
	for _, p := range allKinds(t) {
		for i := 0; i < 12; i++ {
			p.Run(Observation{Reward: 0.25 * float64(i%4), State: i % 3, NextState: (i + 2) % 3})
		}
		raw, err := json.Marshal(p.Snapshot())
		if err != nil {
			t.Fatalf("%s: marshal: %v", p.Kind(), err)
		}
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("%s: unmarshal: %v", p.Kind(), err)
		}
		restored, err := FromSnapshot(snap)
		if err != nil {
			t.Fatalf("%s: FromSnapshot: %v", p.Kind(), err)
		}
		assertSnapshotEqual(t, p.Snapshot(), restored.Snapshot())
	}
}

func TestRestoreRejectsBrokenInvariants(t *testing.T) {
	m := NewMarkov(nil, 1)
	snap := m.Snapshot()
	rows := snap.Markov.Matrices[params.TopK]
	rows[0] = [3]float64{0.5, 0.1, 0.1}
	snap.Markov.Matrices[params.TopK] = rows
	if err := m.Restore(snap); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("expected ErrCorruptSnapshot for non-stochastic row, got %v", err)
	}

	b := newTestBandit(t, MethodThompson, 0)
	bs := b.Snapshot()
	arms := bs.Bandit.Arms[params.TopP]
	arms[1].Beta = 0
	bs.Bandit.Arms[params.TopP] = arms
	if err := b.Restore(bs); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("expected ErrCorruptSnapshot for zero beta, got %v", err)
	}

	q := newTestQ(t, 0.5, 0.9, 0)
	qs := q.Snapshot()
	qs.Params.Temperature.Value = 9
	if err := q.Restore(qs); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("expected ErrCorruptSnapshot for out-of-range meter, got %v", err)
	}

	if err := q.Restore(m.Snapshot()); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("expected ErrCorruptSnapshot for kind mismatch, got %v", err)
	}
}
// #endregion snapshot-tests
