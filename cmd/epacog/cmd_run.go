package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/heraclitus0/epacog/internal/archive"
	"github.com/heraclitus0/epacog/internal/config"
	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/format"
	"github.com/heraclitus0/epacog/internal/logging"
	"github.com/heraclitus0/epacog/internal/sim"
	"github.com/heraclitus0/epacog/internal/topology"
)

type runOptions struct {
	scenario  string
	label     string
	steps     int
	csvPath   string
	fixture   string
	metrics   string
	trace     bool
	noArchive bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a drift simulation and archive its trace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.scenario, "scenario", "s", envOr("EPACOG_SCENARIO", ""), "scenario file (YAML or JSON)")
	f.StringVar(&o.label, "label", "", "label stored with the archived run")
	f.IntVar(&o.steps, "steps", 0, "override the scenario step count")
	f.StringVar(&o.csvPath, "csv", "", "write the drift field as CSV")
	f.StringVar(&o.fixture, "fixture", "", "write the run as a regression fixture")
	f.StringVar(&o.metrics, "metrics", "", "write Prometheus metrics in text format")
	f.BoolVar(&o.trace, "trace", false, "print every step")
	f.BoolVar(&o.noArchive, "no-archive", false, "do not store the run")
	return cmd
}

func runRun(cmd *cobra.Command, g *globalOptions, o *runOptions) error {
	mode, err := g.mode()
	if err != nil {
		return err
	}
	sc, err := config.Load(o.scenario)
	if err != nil {
		return err
	}
	if o.steps < 0 {
		return usageError{fmt.Errorf("--steps must be non-negative, got %d", o.steps)}
	}
	if o.steps > 0 {
		sc.Signal.Steps = o.steps
	}

	log := g.logger(cmd.ErrOrStderr())
	a, err := sc.Build(log)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	a.Drift.Metrics = sim.NewMetrics(reg)

	trace, err := sim.Drift(a.Engine, a.Source, a.Drift)
	if err != nil {
		return fmt.Errorf("drift: %w", err)
	}
	summary := sim.Summarize(trace)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, format.Setup(mode, a.Setup))
	if o.trace {
		fmt.Fprintln(out, format.Trace(mode, trace))
	}
	fmt.Fprintln(out, format.Summary(mode, summary))
	fmt.Fprintln(out, a.Engine.String())

	if !o.noArchive {
		rec, err := saveRun(g, archive.RunRecord{Label: labelOr(o.label, sc.Name)}, sc, a.Setup, summary, trace)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run: %s\n", rec.RunID)
	}
	if o.csvPath != "" {
		if err := writeCSV(o.csvPath, trace); err != nil {
			return err
		}
		fmt.Fprintf(out, "CSV: %s\n", o.csvPath)
	}
	if o.fixture != "" {
		if err := writeFixture(o.fixture, sc, trace); err != nil {
			return err
		}
		fmt.Fprintf(out, "Fixture: %s\n", o.fixture)
	}
	if o.metrics != "" {
		if err := prometheus.WriteToTextfile(o.metrics, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		fmt.Fprintf(out, "Metrics: %s\n", o.metrics)
	}
	return nil
}

// #region archive
// saveRun archives the trace with its scenario, setup and summary, and logs
// one provenance row per step.
func saveRun(g *globalOptions, rec archive.RunRecord, sc config.Scenario, setup sim.Setup, summary sim.Summary, trace []epistemic.Snapshot) (archive.RunRecord, error) {
	store, err := g.openStore()
	if err != nil {
		return archive.RunRecord{}, err
	}
	defer store.Close()

	scenarioJSON, err := json.Marshal(sc)
	if err != nil {
		return archive.RunRecord{}, fmt.Errorf("marshal scenario: %w", err)
	}
	setupJSON, err := json.Marshal(setup)
	if err != nil {
		return archive.RunRecord{}, fmt.Errorf("marshal setup: %w", err)
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return archive.RunRecord{}, fmt.Errorf("marshal summary: %w", err)
	}
	rec.ScenarioJSON = string(scenarioJSON)
	rec.SetupJSON = string(setupJSON)
	rec.SummaryJSON = string(summaryJSON)

	rec, err = store.SaveRun(rec, trace)
	if err != nil {
		return archive.RunRecord{}, fmt.Errorf("save run: %w", err)
	}
	if err := logging.LogTrace(store.DB(), rec.RunID, trace); err != nil {
		return rec, fmt.Errorf("log decisions: %w", err)
	}
	return rec, nil
}

// scenarioOf decodes the scenario archived with rec over the defaults.
func scenarioOf(rec archive.RunRecord) (config.Scenario, error) {
	sc := config.DefaultScenario()
	if rec.ScenarioJSON == "" {
		return sc, fmt.Errorf("run %s has no archived scenario", rec.RunID)
	}
	if err := json.Unmarshal([]byte(rec.ScenarioJSON), &sc); err != nil {
		return sc, fmt.Errorf("parse archived scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return sc, err
	}
	return sc, nil
}

// #endregion archive

// #region export
func writeCSV(path string, trace []epistemic.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := topology.WriteCSV(f, topology.BuildField(trace), topology.DefaultMargin); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

// writeFixture records a run for regression replay. Fixtures replay through
// the default policies, so only scenarios that use them can be exported.
func writeFixture(path string, sc config.Scenario, trace []epistemic.Snapshot) error {
	switch {
	case sc.Threshold != "", sc.Realign != "", sc.Rupture.Strategy != "", len(sc.Peers) > 0:
		return fmt.Errorf("fixture export needs default threshold, realignment and rupture policies")
	case sc.Collapse.Model != "" && (sc.Collapse.Stage != config.StageDriver || sc.Collapse.Label != ""):
		return fmt.Errorf("fixture export supports only an unlabeled driver-stage collapse model")
	}
	desc := fmt.Sprintf("%s: %s signal, %d steps", labelOr(sc.Name, "run"), sc.Signal.Mode, len(trace))
	fx := sim.NewFixture(desc, sc.Engine,
		sim.FixtureInitial{Projection: sc.Initial.Projection, Memory: sc.Initial.Memory},
		sc.Collapse.Model, sc.DecayMemory, trace)
	fx.Seed = sc.EngineSeed()
	return sim.WriteFixture(path, fx)
}

func labelOr(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}

// #endregion export
