// cadence runs scheduled, resource-arbitrated routines on a fixed tick.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "cadence",
		Short: "Cooperative tick scheduler host",
		Long: `cadence drives configured routines on a periodic tick. Each routine claims
named resources; a newer routine evicts an interruptible holder.

Examples:
  cadence check --config ./cadence.yaml
  cadence run --config ./cadence.yaml
  cadence journal --limit 20
`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./cadence.yaml", "path to config (json or yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(journalCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
