// Package format renders traces, run summaries and archive listings as
// terminal or Markdown tables.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/heraclitus0/epacog/internal/archive"
	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/logging"
	"github.com/heraclitus0/epacog/internal/sim"
	"github.com/heraclitus0/epacog/internal/topology"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps a flag value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "ascii", "table":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return ASCII, fmt.Errorf("unknown output format %q", s)
}

// #region writer
func newWriter(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

func rightAlign(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, n := range cols {
		cfgs[i] = table.ColumnConfig{Number: n, Align: text.AlignRight}
	}
	return cfgs
}

// #endregion writer

// #region tables
// Trace renders one row per snapshot.
func Trace(m Mode, trace []epistemic.Snapshot) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"t", "R", "V", "E", "∆", "Θ", "", "collapse"})
	for _, e := range trace {
		status := epistemic.StatusStable
		if e.Ruptured {
			status = epistemic.StatusRupture
		}
		w.AppendRow(table.Row{
			e.Step, Float(e.Received), Float(e.Projection), Float(e.Memory),
			Float(e.Distortion), Float(e.Threshold), string(status), e.CollapseType,
		})
	}
	w.SetColumnConfigs(rightAlign(1, 2, 3, 4, 5, 6))
	return render(w, m)
}

// Summary renders the aggregate stats of a run.
func Summary(m Mode, s sim.Summary) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Metric", "Value"})
	w.AppendRow(table.Row{"steps", s.TotalSteps})
	w.AppendRow(table.Row{"ruptures", s.Ruptures})
	w.AppendRow(table.Row{"realignments", s.Realignments})
	w.AppendRow(table.Row{"max ∆", Float(s.MaxDistortion)})
	w.AppendRow(table.Row{"final V", Float(s.FinalProjection)})
	w.AppendRow(table.Row{"final E", Float(s.FinalMemory)})
	for _, k := range sortedKeys(s.CollapseTypes) {
		w.AppendRow(table.Row{"collapse " + k, s.CollapseTypes[k]})
	}
	return render(w, m)
}

// Topology renders a topology summary.
func Topology(m Mode, s topology.Summary) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Metric", "Value"})
	w.AppendRow(table.Row{"steps", s.TotalSteps})
	w.AppendRow(table.Row{"ruptures", s.TotalRuptures})
	first := "-"
	if s.FirstRuptureTime != nil {
		first = fmt.Sprint(*s.FirstRuptureTime)
	}
	w.AppendRow(table.Row{"first rupture", first})
	w.AppendRow(table.Row{"rupture density", fmt.Sprintf("%.3f", s.RuptureDensity)})
	w.AppendRow(table.Row{"volatility", s.VolatilitySignature})
	// Collapsed zones are grouped under their total.
	var collapsed []string
	collapsedTotal := 0
	for _, k := range sortedKeys(s.ZoneDistribution) {
		if topology.IsCollapsed(k) {
			collapsed = append(collapsed, k)
			collapsedTotal += s.ZoneDistribution[k]
			continue
		}
		w.AppendRow(table.Row{"zone " + k, s.ZoneDistribution[k]})
	}
	if len(collapsed) > 0 {
		w.AppendRow(table.Row{"zone collapsed (all)", collapsedTotal})
		for _, k := range collapsed {
			w.AppendRow(table.Row{"  " + k, s.ZoneDistribution[k]})
		}
	}
	for _, k := range sortedKeys(s.CollapseTypes) {
		w.AppendRow(table.Row{"collapse " + k, s.CollapseTypes[k]})
	}
	return render(w, m)
}

// Runs renders archive listings, newest first as given.
func Runs(m Mode, runs []archive.RunRecord) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Run", "Parent", "Label", "Steps", "Ruptures", "Created"})
	for _, r := range runs {
		w.AppendRow(table.Row{
			ShortID(r.RunID), ShortID(r.ParentID), r.Label, r.Steps, r.Ruptures,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	w.SetColumnConfigs(rightAlign(4, 5))
	return render(w, m)
}

// Decisions renders provenance entries.
func Decisions(m Mode, entries []logging.DecisionEntry) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"t", "Decision", "Collapse", "Reason"})
	for _, e := range entries {
		w.AppendRow(table.Row{e.Step, e.Decision, e.CollapseType, e.Reason})
	}
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, WidthMax: 60},
	})
	return render(w, m)
}

// Variants renders a policy registry.
func Variants(m Mode, title string, vs []epistemic.Variant) string {
	w := newWriter(m)
	if title != "" && m == ASCII {
		w.SetTitle(title)
	}
	w.AppendHeader(table.Row{"Name", "Formula", "Meaning"})
	for _, v := range vs {
		w.AppendRow(table.Row{v.Name, v.Formula, v.Meaning})
	}
	return render(w, m)
}

// Setup renders the components of a simulation.
func Setup(m Mode, s sim.Setup) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Component", "Value"})
	w.AppendRow(table.Row{"threshold", s.Threshold})
	w.AppendRow(table.Row{"realignment", s.Realignment})
	w.AppendRow(table.Row{"rupture policy", s.RupturePolicy})
	w.AppendRow(table.Row{"collapse model", s.CollapseModel})
	w.AppendRow(table.Row{"initial V", Float(s.InitialProjection)})
	w.AppendRow(table.Row{"initial E", Float(s.InitialMemory)})
	if p := s.SignalProfile; p != nil {
		w.AppendRow(table.Row{"signal", fmt.Sprintf("%s × %d", p.Mode, p.Steps)})
	}
	return render(w, m)
}

// ComparisonRow is one step of a replay comparison.
type ComparisonRow struct {
	Step     int
	Expected string
	Replayed string
}

// Match reports whether the replayed outcome equals the expected one.
func (r ComparisonRow) Match() bool { return r.Expected == r.Replayed }

// Comparison renders replay rows and returns the number of diverging steps.
func Comparison(m Mode, rows []ComparisonRow) (string, int) {
	w := newWriter(m)
	w.AppendHeader(table.Row{"t", "Expected", "Replayed", "Match"})
	diverge := 0
	for _, r := range rows {
		match := "OK"
		if !r.Match() {
			match = "DIFF"
			diverge++
		}
		w.AppendRow(table.Row{r.Step, r.Expected, r.Replayed, match})
	}
	w.AppendFooter(table.Row{"", fmt.Sprintf("%d total", len(rows)), fmt.Sprintf("%d diverge", diverge), ""})
	return render(w, m), diverge
}

// Outcome is the comparable form of a step: "realign" or "rupture:<label>".
func Outcome(ruptured bool, collapseType string) string {
	if !ruptured {
		return "realign"
	}
	return "rupture:" + collapseType
}

// #endregion tables

// #region helpers
// Float formats a trace value with four decimals.
func Float(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// ShortID trims a UUID to its first block.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion helpers
