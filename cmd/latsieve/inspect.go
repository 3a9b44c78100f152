package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hupe1980/latsieve"
	"github.com/hupe1980/latsieve/blobstore"
	"github.com/hupe1980/latsieve/checkpoint"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [name]",
		Short: "Summarize a checkpoint",
		Long: `Summarize a stored checkpoint. Without a name the latest checkpoint
under checkpoint.name is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCommandConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			var name string
			if len(args) == 1 {
				name = args[0]
			} else if name, err = checkpoint.Latest(ctx, store, cfg.Checkpoint.Name); err != nil {
				return err
			}
			data, err := blobstore.ReadAll(ctx, store, name)
			if err != nil {
				return err
			}
			text, comp, err := checkpoint.Decompress(data)
			if err != nil {
				return err
			}
			snap, err := checkpoint.Unmarshal(text)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			return printSnapshot(cmd.OutOrStdout(), name, len(data), comp, snap, jsonOut)
		},
	}
	cmd.Flags().String("store", "", "Checkpoint store directory (local store)")
	cmd.Flags().Bool("json", false, "Print the summary as JSON")
	return cmd
}

type snapshotSummary struct {
	Name        string            `json:"name"`
	Size        int               `json:"size"`
	Compression string            `json:"compression"`
	Dimension   int               `json:"dimension"`
	Seed        uint64            `json:"seed"`
	State       string            `json:"state"`
	Reason      string            `json:"reason,omitempty"`
	List        int               `json:"list"`
	Queue       int               `json:"queue"`
	Shortest    string            `json:"shortest,omitempty"`
	Norm2       string            `json:"norm2,omitempty"`
	Counters    map[string]uint64 `json:"counters"`
}

func printSnapshot(w io.Writer, name string, size int, comp checkpoint.Compression, snap *latsieve.Snapshot, jsonOut bool) error {
	sum := snapshotSummary{
		Name:        name,
		Size:        size,
		Compression: comp.String(),
		Dimension:   snap.Dimension,
		Seed:        snap.Seed,
		State:       snap.State.String(),
		Reason:      snap.Reason,
		List:        len(snap.List),
		Queue:       len(snap.Queue),
		Counters:    snap.Counters,
	}
	if snap.Shortest != nil {
		sum.Shortest = snap.Shortest.String()
		sum.Norm2 = snap.Shortest.Norm2().String()
	}
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}

	fmt.Fprintf(w, "checkpoint:  %s (%d bytes, %s)\n", sum.Name, sum.Size, sum.Compression)
	fmt.Fprintf(w, "dimension:   %d\n", sum.Dimension)
	fmt.Fprintf(w, "seed:        %d\n", sum.Seed)
	fmt.Fprintf(w, "state:       %s", sum.State)
	if sum.Reason != "" {
		fmt.Fprintf(w, " (%s)", sum.Reason)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "list:        %d\n", sum.List)
	fmt.Fprintf(w, "queue:       %d\n", sum.Queue)
	if sum.Shortest != "" {
		fmt.Fprintf(w, "shortest:    %s (norm2 %s)\n", sum.Shortest, sum.Norm2)
	}
	names := make([]string, 0, len(sum.Counters))
	for n := range sum.Counters {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-20s %d\n", n, sum.Counters[n])
	}
	return nil
}
