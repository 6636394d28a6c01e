// Package logging writes per-step decision provenance for archived runs.
package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// #region log-decision
// LogDecision writes a decision entry to the decision_log table.
func LogDecision(db Execer, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (run_id, t, decision, reason, collapse_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Step,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.CollapseType),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region trace
// EntriesFromTrace derives one decision entry per trace step.
func EntriesFromTrace(runID string, trace []epistemic.Snapshot) []DecisionEntry {
	now := time.Now().UTC()
	entries := make([]DecisionEntry, 0, len(trace))
	for _, e := range trace {
		entry := DecisionEntry{
			RunID:     runID,
			Step:      e.Step,
			Decision:  DecisionRealign,
			Reason:    Reason(e),
			CreatedAt: now,
		}
		if e.Ruptured {
			entry.Decision = DecisionRupture
			entry.CollapseType = e.CollapseType
		}
		entries = append(entries, entry)
	}
	return entries
}

// Reason explains a step's decision in terms of Δ and Θ.
func Reason(e epistemic.Snapshot) string {
	switch {
	case e.Ruptured && e.Distortion > e.Threshold:
		return fmt.Sprintf("distortion %.4f exceeds threshold %.4f", e.Distortion, e.Threshold)
	case e.Ruptured:
		return fmt.Sprintf("policy ruptured at distortion %.4f within threshold %.4f", e.Distortion, e.Threshold)
	case e.Distortion > e.Threshold:
		return fmt.Sprintf("policy held at distortion %.4f above threshold %.4f", e.Distortion, e.Threshold)
	default:
		return fmt.Sprintf("distortion %.4f within threshold %.4f", e.Distortion, e.Threshold)
	}
}

// LogTrace writes the decision entries of a whole trace in one transaction.
func LogTrace(db *sql.DB, runID string, trace []epistemic.Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range EntriesFromTrace(runID, trace) {
		if err := LogDecision(tx, entry); err != nil {
			return fmt.Errorf("step %d: %w", entry.Step, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListDecisions reads the decision log of a run in step order.
func ListDecisions(db *sql.DB, runID string) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, t, decision, reason, collapse_type, created_at
		 FROM decision_log WHERE run_id = ? ORDER BY t, id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var reason, collapseType sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Step, &e.Decision, &reason, &collapseType, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Reason = reason.String
		e.CollapseType = collapseType.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion trace

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
