package decode

import (
	"errors"
	"testing"

	"github.com/mimipynb/agentDial/internal/params"
)

func TestForStrategyKnown(t *testing.T) {
	for _, s := range Strategies {
		cfg, err := ForStrategy(string(s))
		if err != nil {
			t.Fatalf("ForStrategy(%s): %v", s, err)
		}
		if cfg.Strategy != s {
			t.Errorf("strategy = %s, want %s", cfg.Strategy, s)
		}
		if cfg.MaxNewTokens != 25 || cfg.UseCache || cfg.NumReturnSequences != 1 {
			t.Errorf("%s: common bundles not applied: %+v", s, cfg)
		}
	}
}

func TestForStrategyShapes(t *testing.T) {
	cases := []struct {
		name    Strategy
		beams   int
		sample  bool
		topK    int
		penalty float64
		groups  int
	}{
		{GreedySearch, 1, false, 0, 0, 0},
		{ContrastiveSearch, 1, false, 2, 0.1, 0},
		{MultinomialSampling, 1, true, 0, 0, 0},
		{BeamSearch, 2, true, 0, 0, 0},
		{BeamSearchMulti, 2, true, 2, 1, 0},
		{BeamSearchDiverse, 2, true, 0, 0, 2},
		{BeamSearchConstrained, 2, true, 0, 0, 0},
	}
	for _, tc := range cases {
		cfg, err := ForStrategy(string(tc.name))
		if err != nil {
			t.Fatalf("ForStrategy(%s): %v", tc.name, err)
		}
		if cfg.NumBeams != tc.beams || cfg.DoSample != tc.sample || cfg.TopK != tc.topK ||
			cfg.PenaltyAlpha != tc.penalty || cfg.NumBeamGroups != tc.groups {
			t.Errorf("%s: got %+v", tc.name, cfg)
		}
	}
}

func TestForStrategyUnknown(t *testing.T) {
	_, err := ForStrategy("top-secret-search")
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestConstrainedDefaultsAndOverride(t *testing.T) {
	cfg, _ := ForStrategy(string(BeamSearchConstrained))
	if len(cfg.Constraints) != 1 || cfg.Constraints[0] != "rude" {
		t.Fatalf("default constraints = %v", cfg.Constraints)
	}
	if len(cfg.ForceWordsIDs) != 1 || cfg.ForceWordsIDs[0] != "helpful" {
		t.Fatalf("default forced words = %v", cfg.ForceWordsIDs)
	}

	cfg, _ = ForStrategy(string(BeamSearchConstrained), WithConstraints([]string{"a", "b"}, []string{"c"}))
	if len(cfg.Constraints) != 2 || cfg.ForceWordsIDs[0] != "c" {
		t.Fatalf("override not applied: %+v", cfg)
	}
}

func TestConfigsAreIndependent(t *testing.T) {
	a, _ := ForStrategy(string(BeamSearchConstrained))
	b, _ := ForStrategy(string(BeamSearchConstrained))
	a.Constraints[0] = "changed"
	if b.Constraints[0] != "rude" {
		t.Fatalf("configs share constraint storage")
	}

	out, _ := ForStrategy(string(GreedySearch), WithOutputArgs(OutputArgs{MaxNewTokens: 64}))
	again, _ := ForStrategy(string(GreedySearch))
	if out.MaxNewTokens != 64 || again.MaxNewTokens != 25 {
		t.Fatalf("output override leaked: %d / %d", out.MaxNewTokens, again.MaxNewTokens)
	}
}

func TestWithSampling(t *testing.T) {
	base, _ := ForStrategy(string(BeamSearchConstrained))
	tuned := base.WithSampling(params.Values{Temperature: 1.05, TopK: 59.6, TopP: 0.9})

	if tuned.Temperature != 1.05 || tuned.TopK != 60 || tuned.TopP != 0.9 {
		t.Fatalf("sampling values = %v/%d/%v", tuned.Temperature, tuned.TopK, tuned.TopP)
	}
	if base.Temperature != 0 || base.TopK != 0 {
		t.Fatalf("WithSampling mutated the receiver: %+v", base)
	}
	tuned.Constraints[0] = "changed"
	if base.Constraints[0] != "rude" {
		t.Fatalf("WithSampling shares constraint storage")
	}
}
