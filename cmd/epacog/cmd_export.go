package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type exportOptions struct {
	csvPath string
	fixture string
}

func newExportCmd(g *globalOptions) *cobra.Command {
	o := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Export an archived run as CSV or a regression fixture",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.csvPath == "" && o.fixture == "" {
				return usageError{fmt.Errorf("nothing to export: pass --csv and/or --fixture")}
			}
			return runExport(cmd, g, o, argOrEmpty(args))
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.csvPath, "csv", "", "write the drift field as CSV")
	f.StringVar(&o.fixture, "fixture", "", "write the run as a regression fixture")
	return cmd
}

func runExport(cmd *cobra.Command, g *globalOptions, o *exportOptions, ref string) error {
	store, err := g.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.FindRun(ref)
	if err != nil {
		return err
	}
	trace, err := store.LoadTrace(rec.RunID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.csvPath != "" {
		if err := writeCSV(o.csvPath, trace); err != nil {
			return err
		}
		fmt.Fprintf(out, "CSV: %s\n", o.csvPath)
	}
	if o.fixture != "" {
		sc, err := scenarioOf(rec)
		if err != nil {
			return err
		}
		if err := writeFixture(o.fixture, sc, trace); err != nil {
			return err
		}
		fmt.Fprintf(out, "Fixture: %s\n", o.fixture)
	}
	return nil
}
