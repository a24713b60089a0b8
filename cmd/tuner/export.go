package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mimipynb/agentDial/internal/logging"
	"github.com/mimipynb/agentDial/internal/replay"
	"github.com/mimipynb/agentDial/internal/state"
)

var (
	exportDB    string
	exportTrial string
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a recorded trial as a replay fixture",
	Long: `Export turns a trial's first checkpoint and turn log into a YAML fixture
whose expectations are the logged outcomes, so the trial becomes a
regression baseline for tuner replay --fixture.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(exportDB, exportTrial, exportOut)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDB, "db", "agentdial.db", "path to checkpoint database")
	exportCmd.Flags().StringVar(&exportTrial, "trial", "", "trial to export")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output fixture YAML path (default stdout)")
	exportCmd.MarkFlagRequired("trial")
	rootCmd.AddCommand(exportCmd)
}

// #region export
func runExport(dbPath, trialID, outPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	f, err := buildFixture(store, trialID)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %d turns to %s\n", len(f.Turns), outPath)
	return nil
}

func buildFixture(store *state.Store, trialID string) (*replay.Fixture, error) {
	checkpoints, err := store.List(trialID, -1)
	if err != nil {
		return nil, err
	}
	if len(checkpoints) == 0 {
		return nil, fmt.Errorf("%w: %s", state.ErrNotFound, trialID)
	}
	first := checkpoints[len(checkpoints)-1]
	if first.Turn != 0 {
		return nil, fmt.Errorf("trial %s has no turn-0 checkpoint (earliest is turn %d)", trialID, first.Turn)
	}

	entries, err := logging.ListTurns(store.DB(), trialID, -1)
	if err != nil {
		return nil, err
	}

	f := &replay.Fixture{
		Description: fmt.Sprintf("exported from trial %s", trialID),
		Policy:      first.Snapshot.Config,
		Params:      first.Snapshot.Params.Specs(),
		Turns:       make([]replay.FixtureTurn, len(entries)),
	}
	for i, e := range entries {
		vals := e.Values
		f.Turns[i] = replay.FixtureTurn{
			TurnID:    fmt.Sprintf("%d", e.Turn),
			Reward:    e.Observation.Reward,
			State:     e.Observation.State,
			NextState: e.Observation.NextState,
			Expect: &replay.FixtureExpect{
				Outcome: e.Decision,
				Actions: e.Actions,
				Values:  &vals,
			},
		}
	}
	return f, nil
}
// #endregion export
