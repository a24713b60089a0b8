package trial

import (
	"errors"

	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
)

// Sentinel errors for the trial package.
var (
	ErrTrialNotFound = errors.New("trial: not found")
	ErrTrialExists   = errors.New("trial: already active")
)

// #region config
// ManagerConfig holds persistence knobs shared by every trial.
type ManagerConfig struct {
	CheckpointEvery int // commit a checkpoint every N applied turns; 0 disables periodic checkpoints
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{CheckpointEvery: 1}
}

// StartConfig is supplied once when a trial begins and never changes after.
type StartConfig struct {
	Policy policy.Config
	Params params.Specs
}

// DefaultStartConfig returns the default policy over the default meters.
func DefaultStartConfig() StartConfig {
	return StartConfig{
		Policy: policy.DefaultConfig(),
		Params: params.DefaultSpecs(),
	}
}
// #endregion config

// #region results
// Info describes an active trial.
type Info struct {
	ID     string
	Kind   policy.Kind
	Turn   int
	Values params.Values
}

// StepResult is the outcome of one applied turn.
type StepResult struct {
	TrialID string
	Turn    int
	Actions policy.Decision
	Values  params.Values
}
// #endregion results
