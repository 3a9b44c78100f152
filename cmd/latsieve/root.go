package main

import (
	"github.com/spf13/cobra"
)

// DefaultConfigPath is used when --config is not given and the file exists.
const DefaultConfigPath = "latsieve.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "latsieve",
		Short: "Find short lattice vectors with a Gauss sieve",
		Long: `latsieve reduces random lattice vectors against a growing list of
pairwise reduced vectors until a termination condition holds.

Examples:
  latsieve run --basis basis.txt --target 1     # sieve until norm² ≤ 1
  latsieve run --config run.yaml                # settings from a YAML file
  latsieve resume --config run.yaml             # continue the latest checkpoint
  latsieve inspect --config run.yaml            # summarize the latest checkpoint
  latsieve sketch --dim 4 "[1 2 3 4]" "[2 1 3 4]"`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "YAML config file (default "+DefaultConfigPath+" if present)")

	root.AddCommand(newRunCmd(false))
	root.AddCommand(newRunCmd(true))
	root.AddCommand(newInspectCmd())
	root.AddCommand(newSketchCmd())
	return root
}
