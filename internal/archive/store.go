// Package archive stores completed drift runs and their traces in SQLite.
// Live engines are never persisted; only finished traces are.
package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

// ErrRunNotFound is returned by FindRun when no run matches.
var ErrRunNotFound = errors.New("run not found")

// createdAtLayout is fixed width so created_at sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	parent_id     TEXT,
	label         TEXT,
	steps         INTEGER NOT NULL,
	ruptures      INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	scenario_json TEXT,
	setup_json    TEXT,
	summary_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id        TEXT NOT NULL,
	t             INTEGER NOT NULL,
	received      REAL NOT NULL,
	projection    REAL NOT NULL,
	memory        REAL NOT NULL,
	distortion    REAL NOT NULL,
	threshold     REAL NOT NULL,
	ruptured      INTEGER NOT NULL,
	collapse_type TEXT,
	PRIMARY KEY (run_id, t),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	t             INTEGER NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	collapse_type TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS active_run (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	run_id        TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store manages archived runs in SQLite.
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
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
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

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region save-run
// SaveRun inserts the run and its trace and makes it the active run, all in
// one transaction. An empty RunID gets a fresh UUID and a zero CreatedAt is
// set to now. Steps and Ruptures are derived from the trace.
func (s *Store) SaveRun(rec RunRecord, trace []epistemic.Snapshot) (RunRecord, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Steps = len(trace)
	rec.Ruptures = 0
	for _, e := range trace {
		if e.Ruptured {
			rec.Ruptures++
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return RunRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, parent_id, label, steps, ruptures, created_at, scenario_json, setup_json, summary_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, nullIfEmpty(rec.ParentID), nullIfEmpty(rec.Label), rec.Steps, rec.Ruptures,
		rec.CreatedAt.UTC().Format(createdAtLayout),
		nullIfEmpty(rec.ScenarioJSON), nullIfEmpty(rec.SetupJSON), nullIfEmpty(rec.SummaryJSON),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO snapshots (run_id, t, received, projection, memory, distortion, threshold, ruptured, collapse_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("prepare snapshot: %w", err)
	}
	defer stmt.Close()
	for _, e := range trace {
		if _, err := stmt.Exec(rec.RunID, e.Step, e.Received, e.Projection, e.Memory,
			e.Distortion, e.Threshold, e.Ruptured, nullIfEmpty(e.CollapseType)); err != nil {
			return RunRecord{}, fmt.Errorf("insert snapshot %d: %w", e.Step, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO active_run (id, run_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`,
		rec.RunID,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return RunRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion save-run

// #region get-run
// Current reads the active run.
func (s *Store) Current() (RunRecord, error) {
	var runID string
	err := s.db.QueryRow(`SELECT run_id FROM active_run WHERE id = 1`).Scan(&runID)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetRun(runID)
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT run_id, parent_id, label, steps, ruptures, created_at, scenario_json, setup_json, summary_json
		 FROM runs WHERE run_id = ?`, id,
	)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// FindRun resolves a full run ID or a unique prefix of one. The prefix is
// compared literally. An empty ref selects the active run.
func (s *Store) FindRun(ref string) (RunRecord, error) {
	if ref == "" {
		return s.Current()
	}
	rows, err := s.db.Query(`SELECT run_id FROM runs WHERE substr(run_id, 1, length(?)) = ? LIMIT 2`, ref, ref)
	if err != nil {
		return RunRecord{}, fmt.Errorf("find run: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return RunRecord{}, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return RunRecord{}, fmt.Errorf("find run: %w", err)
	}
	switch len(ids) {
	case 0:
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, ref)
	case 1:
		return s.GetRun(ids[0])
	}
	return RunRecord{}, fmt.Errorf("run prefix %q is ambiguous", ref)
}

// #endregion get-run

// #region set-active
// SetActive points the active run at an existing run.
func (s *Store) SetActive(runID string) error {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	_, err = s.db.Exec(
		`INSERT INTO active_run (id, run_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`, runID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

// #endregion set-active

// #region list-runs
// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, parent_id, label, steps, ruptures, created_at, scenario_json, setup_json, summary_json
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Lineage follows parent links from id back to the root run.
func (s *Store) Lineage(id string) ([]RunRecord, error) {
	var chain []RunRecord
	seen := map[string]bool{}
	for id != "" && !seen[id] {
		seen[id] = true
		rec, err := s.GetRun(id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, rec)
		id = rec.ParentID
	}
	return chain, nil
}

// #endregion list-runs

// #region load-trace
// LoadTrace returns the archived trace of a run in step order.
func (s *Store) LoadTrace(runID string) ([]epistemic.Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT t, received, projection, memory, distortion, threshold, ruptured, collapse_type
		 FROM snapshots WHERE run_id = ? ORDER BY t`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load trace %s: %w", runID, err)
	}
	defer rows.Close()

	var trace []epistemic.Snapshot
	for rows.Next() {
		var e epistemic.Snapshot
		var collapseType sql.NullString
		if err := rows.Scan(&e.Step, &e.Received, &e.Projection, &e.Memory,
			&e.Distortion, &e.Threshold, &e.Ruptured, &collapseType); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		e.CollapseType = collapseType.String
		trace = append(trace, e)
	}
	return trace, rows.Err()
}

// #endregion load-trace

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var parentID, label, scenario, setup, summary sql.NullString
	var createdStr string
	if err := row.Scan(&rec.RunID, &parentID, &label, &rec.Steps, &rec.Ruptures, &createdStr,
		&scenario, &setup, &summary); err != nil {
		return RunRecord{}, err
	}
	rec.ParentID = parentID.String
	rec.Label = label.String
	rec.ScenarioJSON = scenario.String
	rec.SetupJSON = setup.String
	rec.SummaryJSON = summary.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
