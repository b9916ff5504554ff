package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/microsafety/microsafety/internal/feed"
)

func newScenarioCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [preset]",
		Short: "List scenario presets, or switch the feed origin to one",
		Args:  cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			names := make([]string, 0, len(feed.Scenarios()))
			for _, s := range feed.Scenarios() {
				names = append(names, string(s))
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listScenarios(cmd.OutOrStdout())
			}

			preset, err := feed.ParseScenario(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			origin, err := newUpstream(cfg, nil, nil, newLogger(cfg, os.Stderr))
			if err != nil {
				return err
			}

			res, err := origin.SetScenario(cmd.Context(), preset)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario set to %s: %s\n", res.Scenario, res.Description)
			return nil
		},
	}
}

func listScenarios(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, s := range feed.Scenarios() {
		fmt.Fprintf(tw, "%s\t%s\n", s, s.Description())
	}
	return tw.Flush()
}
