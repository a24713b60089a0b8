package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mimipynb/agentDial/internal/logging"
	"github.com/mimipynb/agentDial/internal/policy"
	"github.com/mimipynb/agentDial/internal/replay"
	"github.com/mimipynb/agentDial/internal/state"
	"github.com/mimipynb/agentDial/internal/trial"
)

var (
	replayFixture string
	replayDB      string
	replayTrial   string
	replayPolicy  string
	replayJSON    bool
)

// errMismatch marks a replay whose outcomes differ from what was expected.
var errMismatch = errors.New("replay mismatch")

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a fixture or a recorded trial through a fresh policy",
	Long: `Replay runs observations through a fresh in-memory policy.

  tuner replay --fixture session.yaml [--policy kind]
  tuner replay --db agentdial.db --trial <id>

Fixture mode checks each turn against the fixture's expectations.
DB mode rebuilds the trial from its first checkpoint and compares every
logged outcome and value.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayFixture, "fixture", "", "path to fixture YAML (fixture mode)")
	replayCmd.Flags().StringVar(&replayDB, "db", "", "path to checkpoint database (DB mode)")
	replayCmd.Flags().StringVar(&replayTrial, "trial", "", "trial to replay (DB mode)")
	replayCmd.Flags().StringVar(&replayPolicy, "policy", "", "override the fixture's policy kind")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "output as JSON instead of table")
	rootCmd.AddCommand(replayCmd)
}

// #region replay
func runReplay(cmd *cobra.Command, args []string) error {
	switch {
	case replayFixture != "" && replayDB == "":
		return runFixtureMode(replayFixture)
	case replayDB != "" && replayFixture == "":
		if replayTrial == "" {
			return errors.New("--trial is required with --db")
		}
		return runDBMode(replayDB, replayTrial)
	}
	return errors.New("exactly one of --fixture or --db is required")
}

func runFixtureMode(path string) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	cfg := f.Policy
	if replayPolicy != "" {
		cfg.Kind = policy.Kind(replayPolicy)
	}
	results, summary, err := replay.Replay(cfg, f.Params, f.ToTurns())
	if err != nil {
		return err
	}
	if err := printResults(results, summary); err != nil {
		return err
	}

	// Expectations describe the fixture's own policy.
	if replayPolicy != "" {
		return nil
	}
	diffs := replay.Verify(f, results)
	for _, d := range diffs {
		fmt.Fprintln(os.Stderr, "MISMATCH:", d)
	}
	if len(diffs) > 0 {
		return fmt.Errorf("%w: %d difference(s)", errMismatch, len(diffs))
	}
	return nil
}
// #endregion replay

// #region db-mode
func runDBMode(dbPath, trialID string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	checkpoints, err := store.List(trialID, -1)
	if err != nil {
		return err
	}
	if len(checkpoints) == 0 {
		return fmt.Errorf("%w: %s", state.ErrNotFound, trialID)
	}
	first := checkpoints[len(checkpoints)-1]

	entries, err := logging.ListTurns(store.DB(), trialID, -1)
	if err != nil {
		return err
	}
	turns := make([]replay.Turn, len(entries))
	for i, e := range entries {
		turns[i] = replay.Turn{TurnID: fmt.Sprintf("%d", e.Turn), Observation: e.Observation}
	}

	snap := first.Snapshot
	results, summary, err := replay.Replay(snap.Config, snap.Params.Specs(), turns)
	if err != nil {
		return err
	}
	if err := printResults(results, summary); err != nil {
		return err
	}

	// Turns before the first checkpoint are not replayable.
	if first.Turn != 0 {
		fmt.Fprintf(os.Stderr, "first checkpoint is at turn %d; outcomes not compared\n", first.Turn)
		return nil
	}
	diverged := 0
	for i, e := range entries {
		r := results[i]
		if r.Outcome != e.Decision || r.Values != e.Values {
			diverged++
			fmt.Fprintf(os.Stderr, "DIVERGED turn %d: logged %s %s, replayed %s %s\n",
				e.Turn, e.Decision, trial.FormatDecision(e.Actions), r.Outcome, trial.FormatDecision(r.Actions))
		}
	}
	if diverged > 0 {
		return fmt.Errorf("%w: %d of %d turns diverged", errMismatch, diverged, len(entries))
	}
	return nil
}
// #endregion db-mode

// #region output
func printResults(results []replay.Result, summary replay.Summary) error {
	if replayJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Results []replay.Result `json:"results"`
			Summary replay.Summary  `json:"summary"`
		}{results, summary})
	}

	fmt.Printf("%-10s  %-9s  %-40s  %11s  %6s  %6s\n",
		"Turn", "Outcome", "Actions", "Temperature", "TopK", "TopP")
	fmt.Printf("%-10s+-%-9s+-%-40s+-%11s+-%6s+-%6s\n",
		"----------", "---------", "----------------------------------------", "-----------", "------", "------")
	for _, r := range results {
		actions := trial.FormatDecision(r.Actions)
		if r.Outcome == logging.DecisionRejected {
			actions = r.Reason
			if len(actions) > 40 {
				actions = actions[:37] + "..."
			}
		}
		fmt.Printf("%-10s  %-9s  %-40s  %11.3f  %6.0f  %6.3f\n",
			r.TurnID, r.Outcome, actions, r.Values.Temperature, r.Values.TopK, r.Values.TopP)
	}
	fmt.Printf("\n%d turns: %d applied, %d rejected. Final temperature=%.3f top_k=%.0f top_p=%.3f\n",
		summary.TotalTurns, summary.Applied, summary.Rejected,
		summary.FinalValues.Temperature, summary.FinalValues.TopK, summary.FinalValues.TopP)
	return nil
}
// #endregion output
