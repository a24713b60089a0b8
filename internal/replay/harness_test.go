package replay

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/mimipynb/agentDial/internal/logging"
	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
)

// #region fixture-tests
func runFixture(t *testing.T, name string) (*Fixture, []Result, Summary) {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	results, summary, err := Replay(f.Policy, f.Params, f.ToTurns())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for _, d := range Verify(f, results) {
		t.Error(d)
	}
	return f, results, summary
}

// TestFixture_GreedySession is the regression baseline for the greedy bandit:
// ties, saturation at top_p=1.0, a rejected NaN reward and the switch to
// decrease once the increase arm goes negative.
func TestFixture_GreedySession(t *testing.T) {
	f, _, summary := runFixture(t, "greedy_session.yaml")

	if f.Policy.Bandit.C != policy.DefaultConfig().Bandit.C {
		t.Errorf("unset bandit.c should keep its default, got %g", f.Policy.Bandit.C)
	}
	if summary.TotalTurns != 6 || summary.Applied != 5 || summary.Rejected != 1 {
		t.Errorf("unexpected summary counts: %+v", summary)
	}
	if math.Abs(summary.FinalValues.Temperature-1.55) > 1e-9 || summary.FinalValues.TopK != 80 {
		t.Errorf("unexpected final values: %+v", summary.FinalValues)
	}
}

func TestFixture_QLearningSession(t *testing.T) {
	_, results, summary := runFixture(t, "qlearning_session.yaml")

	if summary.Rejected != 1 || results[2].Outcome != logging.DecisionRejected {
		t.Fatalf("expected q3 rejected, got %+v", results[2])
	}
	if summary.Final.QLearning == nil || summary.Final.QLearning.NumStates != 2 {
		t.Fatalf("expected a 2-state Q snapshot, got %+v", summary.Final.QLearning)
	}
}
// #endregion fixture-tests

// #region harness-tests
func TestReplay_RejectedTurnKeepsValues(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.Kind = policy.KindMarkov
	turns := []Turn{
		{TurnID: "a", Observation: policy.Observation{Reward: 1}},
		{TurnID: "b", Observation: policy.Observation{Reward: -1}},
	}
	results, summary, err := Replay(cfg, params.DefaultSpecs(), turns)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[1].Outcome != logging.DecisionRejected || results[1].Actions != nil {
		t.Fatalf("negative markov reward should be rejected: %+v", results[1])
	}
	if results[1].Values != results[0].Values {
		t.Fatalf("rejected turn changed values: %+v -> %+v", results[0].Values, results[1].Values)
	}
	if summary.FinalValues != results[0].Values {
		t.Fatalf("final values = %+v, want %+v", summary.FinalValues, results[0].Values)
	}
}

func TestReplay_BadConfig(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.Kind = "sarsa"
	if _, _, err := Replay(cfg, params.DefaultSpecs(), nil); err == nil {
		t.Fatal("expected error for unknown policy kind")
	}

	specs := params.DefaultSpecs()
	specs.TopP.Step = 0
	if _, _, err := Replay(policy.DefaultConfig(), specs, nil); err == nil {
		t.Fatal("expected error for zero step")
	}
}

func TestReplay_DeterministicForSeed(t *testing.T) {
	turns := make([]Turn, 20)
	for i := range turns {
		turns[i] = Turn{Observation: policy.Observation{Reward: float64(i%3) / 2}}
	}
	for _, kind := range []policy.Kind{policy.KindBandit, policy.KindMarkov, policy.KindQLearning} {
		cfg := policy.DefaultConfig()
		cfg.Kind = kind
		cfg.Seed = 42
		_, a, err := Replay(cfg, params.DefaultSpecs(), turns)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		_, b, _ := Replay(cfg, params.DefaultSpecs(), turns)
		if a.FinalValues != b.FinalValues {
			t.Errorf("%s: same seed gave %+v and %+v", kind, a.FinalValues, b.FinalValues)
		}
	}
}

func TestVerify_ReportsMismatch(t *testing.T) {
	f := &Fixture{Turns: []FixtureTurn{{
		TurnID: "x",
		Expect: &FixtureExpect{
			Outcome: logging.DecisionApplied,
			Actions: policy.Decision{params.TopK: params.Hold},
			Values:  &params.Values{Temperature: 9, TopK: 50, TopP: 1},
		},
	}}}
	results := []Result{{
		TurnID:  "x",
		Outcome: logging.DecisionRejected,
		Values:  params.Values{Temperature: 0.8, TopK: 50, TopP: 1},
	}}
	diffs := Verify(f, results)
	if len(diffs) != 3 {
		t.Fatalf("expected 3 diffs (outcome, action, temperature), got %v", diffs)
	}

	if diffs := Verify(f, nil); len(diffs) != 1 {
		t.Fatalf("expected a length mismatch, got %v", diffs)
	}
}

func TestVerify_ValueTolerance(t *testing.T) {
	f := &Fixture{Turns: []FixtureTurn{{
		TurnID: "x",
		Expect: &FixtureExpect{Values: &params.Values{Temperature: 1.05, TopK: 50, TopP: 0.9}},
	}}}

	drift := []Result{{TurnID: "x", Values: params.Values{Temperature: 0.8 + 0.25, TopK: 50, TopP: 1 - 0.1}}}
	if diffs := Verify(f, drift); len(diffs) != 0 {
		t.Fatalf("float drift should be tolerated, got %v", diffs)
	}

	off := []Result{{TurnID: "x", Values: params.Values{Temperature: 1.05 + 1e-6, TopK: 50, TopP: 0.9}}}
	if diffs := Verify(f, off); len(diffs) != 1 {
		t.Fatalf("expected one temperature diff, got %v", diffs)
	}
}
// #endregion harness-tests
