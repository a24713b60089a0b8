package policy

import "errors"

// Sentinel errors for the policy package.
// Use errors.Is to check: errors.Is(err, policy.ErrInvalidReward)
var (
	ErrInvalidReward   = errors.New("policy: invalid reward")
	ErrUnknownState    = errors.New("policy: unknown state")
	ErrUnknownMethod   = errors.New("policy: unknown method")
	ErrUnknownKind     = errors.New("policy: unknown policy kind")
	ErrCorruptSnapshot = errors.New("policy: snapshot violates invariants")
)
