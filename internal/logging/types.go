package logging

import (
	"time"

	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
)

// Turn outcomes recorded in turn_log.decision.
const (
	DecisionApplied  = "applied"
	DecisionRejected = "rejected"
)

// #region turn-entry
// TurnEntry is a single row in the turn_log table. Rejected turns carry the
// values that stayed in effect and the error text as Reason.
type TurnEntry struct {
	TrialID     string
	Turn        int
	Kind        policy.Kind
	Observation policy.Observation
	Actions     policy.Decision // nil when rejected
	Values      params.Values
	Decision    string // "applied" | "rejected"
	Reason      string
	CreatedAt   time.Time
}
// #endregion turn-entry
