package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heraclitus0/epacog/internal/archive"
	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/format"
	"github.com/heraclitus0/epacog/internal/logging"
	"github.com/heraclitus0/epacog/internal/topology"
)

type inspectOptions struct {
	last      int
	trace     bool
	decisions bool
	lineage   bool
	topology  bool
	margin    float64
	jsonOut   bool
	activate  bool
}

type inspectReport struct {
	Run       archive.RunRecord       `json:"run"`
	Lineage   []archive.RunRecord     `json:"lineage,omitempty"`
	Topology  *topology.Summary       `json:"topology,omitempty"`
	Decisions []logging.DecisionEntry `json:"decisions,omitempty"`
	Trace     []epistemic.Snapshot    `json:"trace,omitempty"`
}

func newInspectCmd(g *globalOptions) *cobra.Command {
	o := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect [run-id]",
		Short: "List archived runs or show one run in detail",
		Long: "Without a run id and without detail flags, inspect lists the most\n" +
			"recent runs. With a run id (or a unique prefix) or any detail flag it\n" +
			"shows that run, the active run by default. --activate makes the\n" +
			"selected run the default for replay and inspect.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, g, o, args)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.last, "last", 20, "number of runs to list")
	f.BoolVar(&o.trace, "trace", false, "show every step")
	f.BoolVar(&o.decisions, "decisions", false, "show the decision log")
	f.BoolVar(&o.lineage, "lineage", false, "show the replay chain back to the root run")
	f.BoolVar(&o.topology, "topology", false, "show the drift topology summary")
	f.Float64Var(&o.margin, "margin", topology.DefaultMargin, "stable zone margin below Θ")
	f.BoolVar(&o.jsonOut, "json", false, "output as JSON instead of tables")
	f.BoolVar(&o.activate, "activate", false, "make the selected run the active run")
	return cmd
}

func runInspect(cmd *cobra.Command, g *globalOptions, o *inspectOptions, args []string) error {
	mode, err := g.mode()
	if err != nil {
		return err
	}
	store, err := g.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	out := cmd.OutOrStdout()

	detail := len(args) > 0 || o.trace || o.decisions || o.lineage || o.topology || o.activate
	if !detail {
		if o.last <= 0 {
			return usageError{fmt.Errorf("--last must be positive, got %d", o.last)}
		}
		runs, err := store.ListRuns(o.last)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no runs found")
			return nil
		}
		if o.jsonOut {
			return writeJSON(cmd, runs)
		}
		fmt.Fprintln(out, format.Runs(mode, runs))
		return nil
	}

	rec, err := store.FindRun(argOrEmpty(args))
	if err != nil {
		return err
	}
	if o.activate {
		if err := store.SetActive(rec.RunID); err != nil {
			return err
		}
		g.logger(cmd.ErrOrStderr()).Info("active run changed", "run_id", rec.RunID)
	}
	trace, err := store.LoadTrace(rec.RunID)
	if err != nil {
		return err
	}

	report := inspectReport{Run: rec}
	if o.lineage {
		if report.Lineage, err = store.Lineage(rec.RunID); err != nil {
			return err
		}
	}
	if o.decisions {
		if report.Decisions, err = logging.ListDecisions(store.DB(), rec.RunID); err != nil {
			return err
		}
	}
	if o.topology {
		field := topology.BuildField(trace)
		t := topology.Describe(field, field.Zones(o.margin))
		report.Topology = &t
	}
	if o.trace {
		report.Trace = trace
	}
	if o.jsonOut {
		return writeJSON(cmd, report)
	}

	fmt.Fprintf(out, "Run:      %s\n", rec.RunID)
	if rec.ParentID != "" {
		fmt.Fprintf(out, "Parent:   %s\n", rec.ParentID)
	}
	fmt.Fprintf(out, "Label:    %s\n", rec.Label)
	fmt.Fprintf(out, "Created:  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Steps:    %d\n", rec.Steps)
	fmt.Fprintf(out, "Ruptures: %d\n", rec.Ruptures)
	if o.activate {
		fmt.Fprintf(out, "Active:   %s\n", rec.RunID)
	}
	if report.Lineage != nil {
		fmt.Fprintln(out, format.Runs(mode, report.Lineage))
	}
	if report.Topology != nil {
		fmt.Fprintln(out, format.Topology(mode, *report.Topology))
	}
	if report.Decisions != nil {
		fmt.Fprintln(out, format.Decisions(mode, report.Decisions))
	}
	if report.Trace != nil {
		fmt.Fprintln(out, format.Trace(mode, report.Trace))
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
