package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mimipynb/agentDial/internal/policy"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	trial_id      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	turn          INTEGER NOT NULL,
	snapshot_json TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES checkpoints(version_id)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_trial ON checkpoints(trial_id, turn);

CREATE TABLE IF NOT EXISTS active_checkpoint (
	trial_id      TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES checkpoints(version_id)
);

CREATE TABLE IF NOT EXISTS turn_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	trial_id      TEXT NOT NULL,
	turn          INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	reward        REAL,
	state         INTEGER NOT NULL,
	next_state    INTEGER NOT NULL,
	actions_json  TEXT,
	values_json   TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store keeps versioned policy checkpoints in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region commit
// Commit stores snap as a new version of trialID, parented on the trial's
// active version, and moves the active pointer to it atomically.
func (s *Store) Commit(trialID string, turn int, snap policy.Snapshot) (Checkpoint, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_checkpoint WHERE trial_id = ?`, trialID).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("get active: %w", err)
	}

	cp := Checkpoint{
		VersionID: uuid.New().String(),
		ParentID:  parent.String,
		TrialID:   trialID,
		Kind:      snap.Config.Kind,
		Turn:      turn,
		Snapshot:  snap,
		CreatedAt: time.Now().UTC(),
	}

	var parentPtr interface{}
	if cp.ParentID != "" {
		parentPtr = cp.ParentID
	}

	_, err = tx.Exec(
		`INSERT INTO checkpoints (version_id, parent_id, trial_id, kind, turn, snapshot_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cp.VersionID, parentPtr, trialID, string(cp.Kind), turn, string(raw),
		cp.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("insert checkpoint: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_checkpoint (trial_id, version_id) VALUES (?, ?)
		 ON CONFLICT(trial_id) DO UPDATE SET version_id = excluded.version_id`,
		trialID, cp.VersionID,
	)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Checkpoint{}, fmt.Errorf("commit: %w", err)
	}
	return cp, nil
}
// #endregion commit

// #region latest
// Latest reads the active checkpoint of a trial.
func (s *Store) Latest(trialID string) (Checkpoint, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_checkpoint WHERE trial_id = ?`, trialID).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("%w: trial %s", ErrNotFound, trialID)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("get active: %w", err)
	}
	return s.Get(versionID)
}
// #endregion latest

// #region get
// Get retrieves a checkpoint by version ID.
func (s *Store) Get(versionID string) (Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, trial_id, kind, turn, snapshot_json, created_at
		 FROM checkpoints WHERE version_id = ?`, versionID,
	)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("%w: version %s", ErrNotFound, versionID)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("get version %s: %w", versionID, err)
	}
	return cp, nil
}
// #endregion get

// #region rollback
// Rollback points a trial's active checkpoint at one of its earlier versions.
func (s *Store) Rollback(trialID, targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM checkpoints WHERE version_id = ? AND trial_id = ?`, targetVersionID, trialID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: version %s in trial %s", ErrNotFound, targetVersionID, trialID)
	}

	_, err = s.db.Exec(`UPDATE active_checkpoint SET version_id = ? WHERE trial_id = ?`, targetVersionID, trialID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region list
// List returns the most recent checkpoints of a trial, newest first.
// A negative limit returns every checkpoint.
func (s *Store) List(trialID string, limit int) ([]Checkpoint, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, trial_id, kind, turn, snapshot_json, created_at
		 FROM checkpoints WHERE trial_id = ? ORDER BY turn DESC, created_at DESC LIMIT ?`, trialID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Trials summarises every trial with an active checkpoint, most recently updated first.
func (s *Store) Trials() ([]TrialSummary, error) {
	rows, err := s.db.Query(
		`SELECT a.trial_id, c.kind, a.version_id, c.turn, c.created_at,
		        (SELECT COUNT(*) FROM checkpoints x WHERE x.trial_id = a.trial_id)
		 FROM active_checkpoint a JOIN checkpoints c ON c.version_id = a.version_id
		 ORDER BY c.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var out []TrialSummary
	for rows.Next() {
		var ts TrialSummary
		var kind, createdStr string
		if err := rows.Scan(&ts.TrialID, &kind, &ts.ActiveVersion, &ts.Turn, &createdStr, &ts.Checkpoints); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ts.Kind = policy.Kind(kind)
		ts.UpdatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, ts)
	}
	return out, rows.Err()
}
// #endregion list

// #region scan
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckpoint(r rowScanner) (Checkpoint, error) {
	var cp Checkpoint
	var parentID sql.NullString
	var kind, raw, createdStr string

	if err := r.Scan(&cp.VersionID, &parentID, &cp.TrialID, &kind, &cp.Turn, &raw, &createdStr); err != nil {
		return Checkpoint{}, err
	}
	if parentID.Valid {
		cp.ParentID = parentID.String
	}
	cp.Kind = policy.Kind(kind)
	if err := json.Unmarshal([]byte(raw), &cp.Snapshot); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return cp, nil
}
// #endregion scan
