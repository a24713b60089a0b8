package state

import (
	"errors"
	"time"

	"github.com/mimipynb/agentDial/internal/policy"
)

// ErrNotFound is returned when a trial has no checkpoint or a version ID is unknown.
var ErrNotFound = errors.New("state: checkpoint not found")

// #region checkpoint
// Checkpoint is one versioned snapshot of a trial's learned tables and meters.
type Checkpoint struct {
	VersionID string
	ParentID  string
	TrialID   string
	Kind      policy.Kind
	Turn      int
	Snapshot  policy.Snapshot
	CreatedAt time.Time
}
// #endregion checkpoint

// #region trial-summary
// TrialSummary describes a trial that has at least one checkpoint.
type TrialSummary struct {
	TrialID       string
	Kind          policy.Kind
	ActiveVersion string
	Turn          int
	Checkpoints   int
	UpdatedAt     time.Time
}
// #endregion trial-summary
