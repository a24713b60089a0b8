package trial

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"

	"github.com/mimipynb/agentDial/internal/logging"
	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
	"github.com/mimipynb/agentDial/internal/state"
)

// #region trial
// trial is one conversation's controller. Its mutex serialises every call so
// a policy never sees concurrent turns.
type trial struct {
	mu     sync.Mutex
	id     string
	policy policy.Policy
	turn   int
	closed bool
}

func (t *trial) info() Info {
	return Info{ID: t.id, Kind: t.policy.Kind(), Turn: t.turn, Values: t.policy.Values()}
}
// #endregion trial

// #region manager
// Manager owns the active trials. Each trial has its own policy and meters;
// nothing mutable is shared between trials.
type Manager struct {
	store  *state.Store // nil keeps everything in memory
	config ManagerConfig

	mu     sync.Mutex
	trials map[string]*trial
}

// NewManager creates a manager. store may be nil, in which case nothing is
// checkpointed or logged and Resume is unavailable.
func NewManager(store *state.Store, config ManagerConfig) *Manager {
	return &Manager{
		store:  store,
		config: config,
		trials: make(map[string]*trial),
	}
}
// #endregion manager

// #region start
// Start creates a trial with a fresh parameter set and policy.
func (m *Manager) Start(ctx context.Context, cfg StartConfig) (Info, error) {
	set, err := params.NewSet(cfg.Params)
	if err != nil {
		return Info{}, fmt.Errorf("build parameter set: %w", err)
	}
	p, err := policy.New(cfg.Policy, set)
	if err != nil {
		return Info{}, fmt.Errorf("build policy: %w", err)
	}

	t := &trial{id: uuid.New().String(), policy: p}
	m.mu.Lock()
	m.trials[t.id] = t
	m.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	m.checkpoint(ctx, t)

	capitan.Info(ctx, TrialStarted,
		TrialIDKey.Field(t.id),
		PolicyKindKey.Field(string(p.Kind())),
	)
	return t.info(), nil
}
// #endregion start

// #region resume
// Resume reactivates a trial from its latest checkpoint. Learned state comes
// from the checkpoint; the turn counter picks up after the last logged turn.
func (m *Manager) Resume(ctx context.Context, id string) (Info, error) {
	if m.store == nil {
		return Info{}, fmt.Errorf("%w: %s (no checkpoint store)", ErrTrialNotFound, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trials[id]; ok {
		return Info{}, fmt.Errorf("%w: %s", ErrTrialExists, id)
	}

	cp, err := m.store.Latest(id)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrTrialNotFound, err)
	}
	p, err := policy.FromSnapshot(cp.Snapshot)
	if err != nil {
		return Info{}, fmt.Errorf("restore %s: %w", id, err)
	}

	// Numbering continues after the last logged turn so a resume from an
	// older checkpoint never reuses turn numbers already in the log.
	turn := cp.Turn
	last, err := logging.LastTurn(m.store.DB(), id)
	if err != nil {
		return Info{}, fmt.Errorf("resume %s: %w", id, err)
	}
	if last > turn {
		turn = last
	}

	t := &trial{id: id, policy: p, turn: turn}
	m.trials[id] = t

	capitan.Info(ctx, TrialResumed,
		TrialIDKey.Field(id),
		PolicyKindKey.Field(string(p.Kind())),
		TurnKey.Field(cp.Turn),
		VersionIDKey.Field(cp.VersionID),
	)
	return t.info(), nil
}
// #endregion resume

// #region step
// Step runs one turn of trial id. A rejected turn leaves the trial's values
// and learned state exactly as they were.
func (m *Manager) Step(ctx context.Context, id string, obs policy.Observation) (StepResult, error) {
	t, err := m.get(id)
	if err != nil {
		return StepResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return StepResult{}, fmt.Errorf("%w: %s", ErrTrialNotFound, id)
	}

	turn := t.turn + 1
	vals, err := t.policy.Run(obs)
	if err != nil {
		m.logTurn(ctx, logging.TurnEntry{
			TrialID:     id,
			Turn:        turn,
			Kind:        t.policy.Kind(),
			Observation: obs,
			Values:      vals,
			Decision:    logging.DecisionRejected,
			Reason:      err.Error(),
		})
		capitan.Error(ctx, TurnRejected,
			TrialIDKey.Field(id),
			TurnKey.Field(turn),
			RewardKey.Field(obs.Reward),
			StateKey.Field(obs.State),
			ErrorKey.Field(err.Error()),
		)
		return StepResult{}, fmt.Errorf("turn %d: %w", turn, err)
	}

	t.turn = turn
	actions := t.policy.LastDecision()
	m.logTurn(ctx, logging.TurnEntry{
		TrialID:     id,
		Turn:        turn,
		Kind:        t.policy.Kind(),
		Observation: obs,
		Actions:     actions,
		Values:      vals,
		Decision:    logging.DecisionApplied,
	})
	if m.config.CheckpointEvery > 0 && turn%m.config.CheckpointEvery == 0 {
		m.checkpoint(ctx, t)
	}

	capitan.Info(ctx, TurnApplied,
		TrialIDKey.Field(id),
		TurnKey.Field(turn),
		RewardKey.Field(obs.Reward),
		StateKey.Field(obs.State),
		ActionsKey.Field(FormatDecision(actions)),
		TemperatureKey.Field(vals.Temperature),
		TopKKey.Field(vals.TopK),
		TopPKey.Field(vals.TopP),
	)
	return StepResult{TrialID: id, Turn: turn, Actions: actions, Values: vals}, nil
}
// #endregion step

// #region query
// Get reports an active trial.
func (m *Manager) Get(id string) (Info, error) {
	t, err := m.get(id)
	if err != nil {
		return Info{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info(), nil
}

// Active lists the IDs of active trials.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.trials))
	for id := range m.trials {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) get(id string) (*trial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trials[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTrialNotFound, id)
	}
	return t, nil
}
// #endregion query

// #region end
// End checkpoints a trial one last time and drops it from memory.
func (m *Manager) End(ctx context.Context, id string) (Info, error) {
	m.mu.Lock()
	t, ok := m.trials[id]
	if ok {
		delete(m.trials, id)
	}
	m.mu.Unlock()
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrTrialNotFound, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	m.checkpoint(ctx, t)

	info := t.info()
	capitan.Info(ctx, TrialEnded,
		TrialIDKey.Field(id),
		PolicyKindKey.Field(string(info.Kind)),
		TurnKey.Field(info.Turn),
	)
	return info, nil
}
// #endregion end

// #region persistence
// checkpoint commits the trial's snapshot. Failures are reported as events;
// the in-memory trial stays authoritative. Caller holds t.mu.
func (m *Manager) checkpoint(ctx context.Context, t *trial) {
	if m.store == nil {
		return
	}
	cp, err := m.store.Commit(t.id, t.turn, t.policy.Snapshot())
	if err != nil {
		capitan.Error(ctx, PersistFailed,
			TrialIDKey.Field(t.id),
			TurnKey.Field(t.turn),
			ErrorKey.Field(err.Error()),
		)
		return
	}
	capitan.Info(ctx, CheckpointCommitted,
		TrialIDKey.Field(t.id),
		TurnKey.Field(t.turn),
		VersionIDKey.Field(cp.VersionID),
	)
}

func (m *Manager) logTurn(ctx context.Context, entry logging.TurnEntry) {
	if m.store == nil {
		return
	}
	if err := logging.LogTurn(m.store.DB(), entry); err != nil {
		capitan.Error(ctx, PersistFailed,
			TrialIDKey.Field(entry.TrialID),
			TurnKey.Field(entry.Turn),
			ErrorKey.Field(err.Error()),
		)
	}
}
// #endregion persistence

// #region helpers
// FormatDecision renders a decision in canonical parameter order,
// e.g. "temperature=increase,top_k=hold,top_p=decrease".
func FormatDecision(d policy.Decision) string {
	parts := make([]string, 0, len(params.Names))
	for _, n := range params.Names {
		if a, ok := d[n]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", n, a))
		}
	}
	return strings.Join(parts, ",")
}
// #endregion helpers
