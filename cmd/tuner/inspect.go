package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mimipynb/agentDial/internal/logging"
	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
	"github.com/mimipynb/agentDial/internal/state"
	"github.com/mimipynb/agentDial/internal/trial"
)

var (
	inspectDB      string
	inspectTrial   string
	inspectVersion string
	inspectLast    int
	inspectJSON    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show checkpoints and turns stored for a trial",
	Long: `Inspect reads the checkpoint database.

  tuner inspect --db agentdial.db                  list trials
  tuner inspect --db agentdial.db --trial <id>     checkpoints and recent turns
  tuner inspect --db agentdial.db --version <id>   learned state of one checkpoint`,
	RunE: runInspect,
}

var (
	rollbackDB      string
	rollbackTrial   string
	rollbackVersion string
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Make an earlier checkpoint the active one for a trial",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := state.NewStore(rollbackDB)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()
		if err := store.Rollback(rollbackTrial, rollbackVersion); err != nil {
			return err
		}
		fmt.Printf("trial %s now resumes from %s\n", rollbackTrial, shortID(rollbackVersion))
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDB, "db", "agentdial.db", "path to checkpoint database")
	inspectCmd.Flags().StringVar(&inspectTrial, "trial", "", "show one trial")
	inspectCmd.Flags().StringVar(&inspectVersion, "version", "", "show one checkpoint in detail")
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent checkpoints and turns")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
	rootCmd.AddCommand(inspectCmd)

	rollbackCmd.Flags().StringVar(&rollbackDB, "db", "agentdial.db", "path to checkpoint database")
	rollbackCmd.Flags().StringVar(&rollbackTrial, "trial", "", "trial to roll back")
	rollbackCmd.Flags().StringVar(&rollbackVersion, "version", "", "checkpoint to activate")
	rollbackCmd.MarkFlagRequired("trial")
	rollbackCmd.MarkFlagRequired("version")
	rootCmd.AddCommand(rollbackCmd)
}

// #region inspect
func runInspect(cmd *cobra.Command, args []string) error {
	store, err := state.NewStore(inspectDB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	switch {
	case inspectVersion != "":
		return runDetailMode(store, inspectVersion)
	case inspectTrial != "":
		return runTrialMode(store, inspectTrial, inspectLast)
	}
	return runListMode(store)
}
// #endregion inspect

// #region list-mode
func runListMode(store *state.Store) error {
	trials, err := store.Trials()
	if err != nil {
		return err
	}
	if len(trials) == 0 {
		fmt.Fprintln(os.Stderr, "no trials found")
		return nil
	}
	if inspectJSON {
		return printJSON(trials)
	}
	fmt.Printf("%-36s  %-9s  %6s  %11s  %-8s  %s\n", "Trial", "Policy", "Turn", "Checkpoints", "Active", "Updated")
	fmt.Printf("%-36s+-%-9s+-%6s+-%11s+-%-8s+-%s\n",
		"------------------------------------", "---------", "------", "-----------", "--------", "--------------------")
	for _, t := range trials {
		fmt.Printf("%-36s  %-9s  %6d  %11d  %-8s  %s\n",
			t.TrialID, t.Kind, t.Turn, t.Checkpoints, shortID(t.ActiveVersion), t.UpdatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}
// #endregion list-mode

// #region trial-mode
type checkpointRow struct {
	VersionID string        `json:"version_id"`
	ParentID  string        `json:"parent_id,omitempty"`
	Turn      int           `json:"turn"`
	Values    params.Values `json:"values"`
	CreatedAt string        `json:"created_at"`
}

func runTrialMode(store *state.Store, trialID string, last int) error {
	checkpoints, err := store.List(trialID, last)
	if err != nil {
		return err
	}
	if len(checkpoints) == 0 {
		return fmt.Errorf("%w: %s", state.ErrNotFound, trialID)
	}
	turns, err := logging.ListTurns(store.DB(), trialID, last)
	if err != nil {
		return err
	}

	// Store returns DESC, reverse for chronological.
	rows := make([]checkpointRow, len(checkpoints))
	for i, cp := range checkpoints {
		rows[len(checkpoints)-1-i] = checkpointRow{
			VersionID: cp.VersionID,
			ParentID:  cp.ParentID,
			Turn:      cp.Turn,
			Values:    cp.Snapshot.Params.Values(),
			CreatedAt: cp.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if inspectJSON {
		return printJSON(struct {
			Checkpoints []checkpointRow     `json:"checkpoints"`
			Turns       []logging.TurnEntry `json:"turns"`
		}{rows, turns})
	}

	fmt.Printf("Trial %s (%s)\n\nCheckpoints:\n", trialID, checkpoints[0].Kind)
	fmt.Printf("%-8s  %6s  %11s  %6s  %6s  %s\n", "Version", "Turn", "Temperature", "TopK", "TopP", "Time")
	fmt.Printf("%-8s+-%6s+-%11s+-%6s+-%6s+-%s\n", "--------", "------", "-----------", "------", "------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-8s  %6d  %11.3f  %6.0f  %6.3f  %s\n",
			shortID(r.VersionID), r.Turn, r.Values.Temperature, r.Values.TopK, r.Values.TopP, r.CreatedAt)
	}

	fmt.Printf("\nTurns:\n")
	fmt.Printf("%6s  %8s  %5s  %-9s  %s\n", "Turn", "Reward", "State", "Outcome", "Actions")
	fmt.Printf("%6s+-%8s+-%5s+-%-9s+-%s\n", "------", "--------", "-----", "---------", "----------------------------------------")
	for _, e := range turns {
		detail := trial.FormatDecision(e.Actions)
		if e.Decision == logging.DecisionRejected {
			detail = e.Reason
		}
		fmt.Printf("%6d  %8.3f  %5d  %-9s  %s\n", e.Turn, e.Observation.Reward, e.Observation.State, e.Decision, detail)
	}
	return nil
}
// #endregion trial-mode

// #region detail-mode
func runDetailMode(store *state.Store, versionID string) error {
	cp, err := store.Get(versionID)
	if err != nil {
		return err
	}
	if inspectJSON {
		return printJSON(cp)
	}

	snap := cp.Snapshot
	vals := snap.Params.Values()
	fmt.Printf("Version:     %s\n", cp.VersionID)
	fmt.Printf("Parent:      %s\n", cp.ParentID)
	fmt.Printf("Trial:       %s\n", cp.TrialID)
	fmt.Printf("Turn:        %d\n", cp.Turn)
	fmt.Printf("Created:     %s\n", cp.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Policy:      %s (seed %d)\n", snap.Config.Kind, snap.Config.Seed)
	fmt.Printf("Values:      temperature=%.3f top_k=%.0f top_p=%.3f\n", vals.Temperature, vals.TopK, vals.TopP)

	switch {
	case snap.Bandit != nil:
		printBandit(snap.Config.Bandit.Method, snap.Bandit)
	case snap.Markov != nil:
		printMarkov(snap.Markov)
	case snap.QLearning != nil:
		printQLearning(snap.QLearning)
	}
	return nil
}

func printBandit(method policy.Method, st *policy.BanditState) {
	fmt.Printf("\nArms (%s):\n", method)
	for _, n := range params.Names {
		arms := st.Arms[n]
		fmt.Printf("  %-12s", n)
		for a, arm := range arms {
			fmt.Printf("  %s: n=%d mean=%.3f", params.Action(a), arm.Pulls, arm.Mean)
		}
		fmt.Println()
	}
}

func printMarkov(st *policy.MarkovState) {
	fmt.Printf("\nTransition matrices (rows: previous action):\n")
	for _, n := range params.Names {
		prev := "none"
		if a, ok := st.Prev[n]; ok {
			prev = a.String()
		}
		fmt.Printf("  %s (prev %s)\n", n, prev)
		for from, row := range st.Matrices[n] {
			fmt.Printf("    %-9s %.3f %.3f %.3f\n", params.Action(from), row[0], row[1], row[2])
		}
	}
}

func printQLearning(st *policy.QLearningState) {
	fmt.Printf("\nQ tables (%d states; columns increase decrease hold):\n", st.NumStates)
	for _, n := range params.Names {
		fmt.Printf("  %s\n", n)
		for s, row := range st.Tables[n] {
			fmt.Printf("    s%-3d %.3f %.3f %.3f\n", s, row[0], row[1], row[2])
		}
	}
}
// #endregion detail-mode

// #region output
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
// #endregion output
