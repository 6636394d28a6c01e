package logging

import "time"

// Decisions recorded per step.
const (
	DecisionRealign = "realign"
	DecisionRupture = "rupture"
)

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	RunID        string
	Step         int
	Decision     string // "realign" | "rupture"
	Reason       string
	CollapseType string
	CreatedAt    time.Time
}

// #endregion decision-entry
