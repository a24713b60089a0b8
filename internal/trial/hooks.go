package trial

import "github.com/zoobzio/capitan"

// Signals for hook events.
var (
	TrialStarted        = capitan.NewSignal("tuner.trial.started", "trial started")
	TrialResumed        = capitan.NewSignal("tuner.trial.resumed", "trial resumed from checkpoint")
	TrialEnded          = capitan.NewSignal("tuner.trial.ended", "trial ended")
	TurnApplied         = capitan.NewSignal("tuner.turn.applied", "turn applied")
	TurnRejected        = capitan.NewSignal("tuner.turn.rejected", "turn rejected")
	CheckpointCommitted = capitan.NewSignal("tuner.checkpoint.committed", "checkpoint committed")
	PersistFailed       = capitan.NewSignal("tuner.persist.failed", "persistence failed")
)

// Keys for hook event fields.
var (
	TrialIDKey    = capitan.NewStringKey("tuner.trial.id")
	PolicyKindKey = capitan.NewStringKey("tuner.policy.kind")
	TurnKey       = capitan.NewIntKey("tuner.turn")

	// Observation.
	RewardKey = capitan.NewFloat64Key("tuner.reward")
	StateKey  = capitan.NewIntKey("tuner.state")

	// Outcome.
	ActionsKey     = capitan.NewStringKey("tuner.actions")
	TemperatureKey = capitan.NewFloat64Key("tuner.temperature")
	TopKKey        = capitan.NewFloat64Key("tuner.top_k")
	TopPKey        = capitan.NewFloat64Key("tuner.top_p")

	VersionIDKey = capitan.NewStringKey("tuner.checkpoint.version")
	ErrorKey     = capitan.NewStringKey("tuner.error")
)
