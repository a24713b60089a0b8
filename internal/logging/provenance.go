package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mimipynb/agentDial/internal/policy"
)

// #region log-turn
// LogTurn writes a turn entry to the turn_log table.
func LogTurn(db *sql.DB, entry TurnEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	valuesJSON, err := json.Marshal(entry.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	var actionsJSON interface{}
	if len(entry.Actions) > 0 {
		raw, err := json.Marshal(entry.Actions)
		if err != nil {
			return fmt.Errorf("marshal actions: %w", err)
		}
		actionsJSON = string(raw)
	}

	_, err = db.Exec(
		`INSERT INTO turn_log (trial_id, turn, kind, reward, state, next_state, actions_json, values_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TrialID,
		entry.Turn,
		string(entry.Kind),
		nullIfNaN(entry.Observation.Reward),
		entry.Observation.State,
		entry.Observation.NextState,
		actionsJSON,
		string(valuesJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	return nil
}
// #endregion log-turn

// #region list-turns
// ListTurns returns the most recent turns of a trial in chronological order.
// A negative limit returns every turn.
func ListTurns(db *sql.DB, trialID string, limit int) ([]TurnEntry, error) {
	rows, err := db.Query(
		`SELECT trial_id, turn, kind, reward, state, next_state, actions_json, values_json, decision, reason, created_at
		 FROM turn_log WHERE trial_id = ? ORDER BY id DESC LIMIT ?`, trialID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var out []TurnEntry
	for rows.Next() {
		var e TurnEntry
		var kind, valuesJSON, createdStr string
		var actionsJSON, reason sql.NullString
		var reward sql.NullFloat64
		if err := rows.Scan(&e.TrialID, &e.Turn, &kind, &reward, &e.Observation.State,
			&e.Observation.NextState, &actionsJSON, &valuesJSON, &e.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Kind = policy.Kind(kind)
		e.Observation.Reward = math.NaN()
		if reward.Valid {
			e.Observation.Reward = reward.Float64
		}
		if actionsJSON.Valid {
			if err := json.Unmarshal([]byte(actionsJSON.String), &e.Actions); err != nil {
				return nil, fmt.Errorf("unmarshal actions: %w", err)
			}
		}
		if err := json.Unmarshal([]byte(valuesJSON), &e.Values); err != nil {
			return nil, fmt.Errorf("unmarshal values: %w", err)
		}
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
// #endregion list-turns

// #region last-turn
// LastTurn returns the highest applied turn logged for a trial, or 0 when
// none has been applied.
func LastTurn(db *sql.DB, trialID string) (int, error) {
	var last int
	err := db.QueryRow(
		`SELECT COALESCE(MAX(turn), 0) FROM turn_log WHERE trial_id = ? AND decision = ?`,
		trialID, DecisionApplied,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last turn: %w", err)
	}
	return last, nil
}
// #endregion last-turn

// #region helpers
// nullIfNaN stores NaN rewards as NULL; SQLite has no NaN.
func nullIfNaN(f float64) interface{} {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
