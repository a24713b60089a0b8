package replay

import (
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/mimipynb/agentDial/internal/logging"
	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
)

// valueTolerance bounds float drift when comparing expected values.
const valueTolerance = 1e-9

// #region types
// Turn is a single recorded observation for replay.
type Turn struct {
	TurnID      string
	Observation policy.Observation
}

// Result captures the outcome of replaying one turn.
type Result struct {
	TurnID  string
	Outcome string // "applied" | "rejected"
	Reason  string
	Actions policy.Decision // nil when rejected
	Values  params.Values   // values in effect after the turn
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalTurns  int
	Applied     int
	Rejected    int
	FinalValues params.Values
	Final       policy.Snapshot
}
// #endregion types

// #region replay
// Replay runs turns through a fresh policy built from cfg and specs.
// Operates entirely in-memory; rejected turns leave the policy untouched.
func Replay(cfg policy.Config, specs params.Specs, turns []Turn) ([]Result, Summary, error) {
	set, err := params.NewSet(specs)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("build parameter set: %w", err)
	}
	p, err := policy.New(cfg, set)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("build policy: %w", err)
	}

	results := make([]Result, 0, len(turns))
	for _, turn := range turns {
		vals, err := p.Run(turn.Observation)
		if err != nil {
			results = append(results, Result{
				TurnID:  turn.TurnID,
				Outcome: logging.DecisionRejected,
				Reason:  err.Error(),
				Values:  vals,
			})
			continue
		}
		results = append(results, Result{
			TurnID:  turn.TurnID,
			Outcome: logging.DecisionApplied,
			Actions: p.LastDecision(),
			Values:  vals,
		})
	}
	return results, Summarize(results, p.Snapshot()), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, final policy.Snapshot) Summary {
	s := Summary{
		TotalTurns:  len(results),
		FinalValues: final.Params.Values(),
		Final:       final,
	}
	for _, r := range results {
		switch r.Outcome {
		case logging.DecisionApplied:
			s.Applied++
		case logging.DecisionRejected:
			s.Rejected++
		}
	}
	return s
}
// #endregion replay

// #region verify
// Verify compares results against the fixture's expectations and returns one
// message per mismatch.
func Verify(f *Fixture, results []Result) []string {
	var diffs []string
	if len(results) != len(f.Turns) {
		return append(diffs, fmt.Sprintf("expected %d results, got %d", len(f.Turns), len(results)))
	}
	for i, ft := range f.Turns {
		if ft.Expect == nil {
			continue
		}
		r := results[i]
		if ft.Expect.Outcome != "" && r.Outcome != ft.Expect.Outcome {
			diffs = append(diffs, fmt.Sprintf("turn %d (%s): expected outcome=%s, got %s (reason: %s)",
				i, ft.TurnID, ft.Expect.Outcome, r.Outcome, r.Reason))
		}
		for n, want := range ft.Expect.Actions {
			if got, ok := r.Actions[n]; !ok || got != want {
				diffs = append(diffs, fmt.Sprintf("turn %d (%s): expected %s action=%s, got %s",
					i, ft.TurnID, n, want, got))
			}
		}
		if ft.Expect.Values != nil {
			wantVals, gotVals := ft.Expect.Values.Map(), r.Values.Map()
			for _, n := range params.Names {
				want, got := wantVals[string(n)], gotVals[string(n)]
				if !scalar.EqualWithinAbs(want, got, valueTolerance) {
					diffs = append(diffs, fmt.Sprintf("turn %d (%s): expected %s=%g, got %g",
						i, ft.TurnID, n, want, got))
				}
			}
		}
	}
	return diffs
}
// #endregion verify
