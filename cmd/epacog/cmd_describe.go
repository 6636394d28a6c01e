package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heraclitus0/epacog/internal/collapse"
	"github.com/heraclitus0/epacog/internal/config"
	"github.com/heraclitus0/epacog/internal/format"
	"github.com/heraclitus0/epacog/internal/realign"
	"github.com/heraclitus0/epacog/internal/rupture"
	"github.com/heraclitus0/epacog/internal/threshold"
)

func newDescribeCmd(g *globalOptions) *cobra.Command {
	var scenario string
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "List the built-in policies, or the setup of a scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := g.mode()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if scenario == "" {
				fmt.Fprintln(out, format.Variants(mode, "Threshold", threshold.Describe()))
				fmt.Fprintln(out, format.Variants(mode, "Realignment", realign.Describe()))
				fmt.Fprintln(out, format.Variants(mode, "Rupture", rupture.Describe()))
				fmt.Fprintln(out, format.Variants(mode, "Collapse", collapse.Describe()))
				return nil
			}
			sc, err := config.Load(scenario)
			if err != nil {
				return err
			}
			a, err := sc.Build(g.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, format.Setup(mode, a.Setup))
			return nil
		},
	}
	cmd.Flags().StringVarP(&scenario, "scenario", "s", "", "scenario file to describe")
	return cmd
}
