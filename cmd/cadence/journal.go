package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cadence/internal/app"
	"cadence/internal/config"
	"cadence/internal/storage"
	"cadence/pkg/logx"
)

func journalCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent behavior lifecycle records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfigManager(cfgPath).Load()
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cfg, logx.Nop())
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("storage is disabled in config")
			}
			defer st.Close()

			recs, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range recs {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}
			return printRecords(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON lines")
	return cmd
}

func printRecords(out io.Writer, recs []storage.Record) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTICK\tEVENT\tBEHAVIOR\tRESOURCES\tREASON\tELAPSED")
	for _, r := range recs {
		reason := r.Reason
		if r.Holder != "" {
			reason += " (" + r.Holder + ")"
		}
		if r.Error != "" {
			reason += ": " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.At.Format(time.RFC3339),
			r.Tick,
			strings.TrimPrefix(r.Type, "behavior."),
			r.Name,
			strings.Join(r.Resources, ","),
			reason,
			(time.Duration(r.ElapsedMS) * time.Millisecond).String(),
		)
	}
	return tw.Flush()
}
