package archive

import "time"

// #region run-record
// RunRecord is one archived drift run. The JSON columns hold the scenario,
// the simulation setup and the run summary as produced by the CLI.
type RunRecord struct {
	RunID        string
	ParentID     string // run this one replays, if any
	Label        string
	Steps        int
	Ruptures     int
	CreatedAt    time.Time
	ScenarioJSON string
	SetupJSON    string
	SummaryJSON  string
}

// #endregion run-record
