package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cadence/internal/config"
	"cadence/internal/routine"
	"cadence/internal/scheduler"
	"cadence/pkg/logx"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and print the resource and routine catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfigManager(cfgPath).Load()
			if err != nil {
				return err
			}
			s := scheduler.New(scheduler.Config{StartDisabled: true}, logx.Nop(), nil)
			cat, err := routine.Build(cfg, s, logx.Nop())
			if err != nil {
				return err
			}
			return printCatalogue(cmd.OutOrStdout(), s, cat)
		},
	}
}

func printCatalogue(out io.Writer, s *scheduler.Scheduler, cat *routine.Catalogue) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tFALLBACK")
	for _, r := range cat.Resources {
		fb := "-"
		if r.Fallback != nil {
			fb = r.Fallback.Core().Name()
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, fb)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "ROUTINE\tSCHEDULE\tREQUIRES\tSTEPS\tINTERRUPTIBLE")
	for _, rt := range cat.Routines {
		var reqs []string
		for _, id := range rt.Behavior.Requirements().IDs() {
			reqs = append(reqs, s.ResourceName(id))
		}
		spec := rt.Schedule.Spec()
		sched := spec.Cron
		if sched == "" {
			sched = "every " + spec.Every.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", rt.Name, sched, strings.Join(reqs, ","), rt.Steps, rt.Behavior.Interruptible())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, "config ok")
	return err
}
