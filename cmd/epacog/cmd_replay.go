package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heraclitus0/epacog/internal/archive"
	"github.com/heraclitus0/epacog/internal/config"
	"github.com/heraclitus0/epacog/internal/format"
	"github.com/heraclitus0/epacog/internal/signal"
	"github.com/heraclitus0/epacog/internal/sim"
)

// errDiverged is returned when a replay does not reproduce its reference.
var errDiverged = errors.New("replay diverged")

type replayOptions struct {
	scenario  string
	fixture   string
	label     string
	noArchive bool
}

func newReplayCmd(g *globalOptions) *cobra.Command {
	o := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay [run-id]",
		Short: "Replay archived signals or a fixture and compare outcomes",
		Long: "Replay feeds the signals of an archived run (the active run by default)\n" +
			"through a fresh engine and compares every step with the archive. With\n" +
			"--scenario the signals are replayed through a different scenario and the\n" +
			"result is archived as a child run. With --fixture a regression fixture\n" +
			"is replayed instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.fixture != "" {
				if len(args) > 0 || o.scenario != "" {
					return usageError{fmt.Errorf("--fixture cannot be combined with a run id or --scenario")}
				}
				return runReplayFixture(cmd, g, o.fixture)
			}
			return runReplayRun(cmd, g, o, argOrEmpty(args))
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.scenario, "scenario", "s", "", "replay through this scenario instead of the archived one")
	f.StringVar(&o.fixture, "fixture", "", "replay a fixture file")
	f.StringVar(&o.label, "label", "", "label stored with the replayed run")
	f.BoolVar(&o.noArchive, "no-archive", false, "do not store the replayed run")
	return cmd
}

func runReplayRun(cmd *cobra.Command, g *globalOptions, o *replayOptions, ref string) error {
	mode, err := g.mode()
	if err != nil {
		return err
	}
	store, err := g.openStore()
	if err != nil {
		return err
	}
	parent, err := store.FindRun(ref)
	if err != nil {
		store.Close()
		return err
	}
	archived, err := store.LoadTrace(parent.RunID)
	store.Close()
	if err != nil {
		return err
	}

	sc, err := scenarioOf(parent)
	if err != nil {
		return err
	}
	counterfactual := o.scenario != ""
	if counterfactual {
		if sc, err = config.Load(o.scenario); err != nil {
			return err
		}
	}

	log := g.logger(cmd.ErrOrStderr())
	engine, driverCollapse, err := sc.NewEngine(log)
	if err != nil {
		return err
	}
	setup := sim.Describe(engine, nil, driverCollapse)
	signals := make([]float64, len(archived))
	for i, e := range archived {
		signals[i] = e.Received
	}
	replayed, err := sim.Drift(engine, signal.FromSlice(signals), sim.DriftConfig{
		Steps:       len(signals),
		Collapse:    driverCollapse,
		DecayMemory: sc.DecayMemory,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("drift: %w", err)
	}

	rows := make([]format.ComparisonRow, len(replayed))
	for i, e := range replayed {
		want := archived[i]
		rows[i] = format.ComparisonRow{
			Step:     e.Step,
			Expected: format.Outcome(want.Ruptured, want.CollapseType),
			Replayed: format.Outcome(e.Ruptured, e.CollapseType),
		}
	}
	out := cmd.OutOrStdout()
	table, diverge := format.Comparison(mode, rows)
	fmt.Fprintln(out, table)
	fmt.Fprintf(out, "Summary: %d total, %d match, %d diverge\n", len(rows), len(rows)-diverge, diverge)

	if !o.noArchive {
		label := labelOr(o.label, "replay of "+format.ShortID(parent.RunID))
		rec, err := saveRun(g, archive.RunRecord{ParentID: parent.RunID, Label: label}, sc, setup, sim.Summarize(replayed), replayed)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run: %s (parent %s)\n", rec.RunID, parent.RunID)
	}

	// A counterfactual replay is expected to differ.
	if diverge > 0 && !counterfactual {
		return fmt.Errorf("%w: %d of %d steps", errDiverged, diverge, len(rows))
	}
	return nil
}

func runReplayFixture(cmd *cobra.Command, g *globalOptions, path string) error {
	mode, err := g.mode()
	if err != nil {
		return err
	}
	fx, err := sim.LoadFixture(path)
	if err != nil {
		return usageError{err}
	}
	cfg, err := fx.ToDriftConfig()
	if err != nil {
		return err
	}
	cfg.Logger = g.logger(cmd.ErrOrStderr())
	trace, err := sim.Drift(fx.ToEngine(), signal.FromSlice(fx.Signals), cfg)
	if err != nil {
		return fmt.Errorf("drift: %w", err)
	}

	n := len(fx.Expected)
	if len(trace) < n {
		n = len(trace)
	}
	rows := make([]format.ComparisonRow, n)
	for i := 0; i < n; i++ {
		want := fx.Expected[i]
		rows[i] = format.ComparisonRow{
			Step:     want.Step,
			Expected: format.Outcome(want.Ruptured, want.CollapseType),
			Replayed: format.Outcome(trace[i].Ruptured, trace[i].CollapseType),
		}
	}
	out := cmd.OutOrStdout()
	table, diverge := format.Comparison(mode, rows)
	fmt.Fprintln(out, table)
	fmt.Fprintf(out, "Summary: %d total, %d match, %d diverge\n", n, n-diverge, diverge)
	if diverge > 0 || len(trace) != len(fx.Expected) {
		return fmt.Errorf("%w: %d of %d steps (%d expected, %d replayed)",
			errDiverged, diverge, n, len(fx.Expected), len(trace))
	}
	return nil
}
