package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/latsieve/lattice"
	"github.com/hupe1980/latsieve/sketch"
	"github.com/spf13/cobra"
)

func newSketchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sketch VECTOR VECTOR...",
		Short: "Compare the sketches of vectors",
		Long: `Compute the sketches of the given vectors with the configured sketch
options and seed, then print the Hamming distance of every pair per block and
whether the outer bands would let the pair through to an exact test.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := LoadConfig(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Sieve.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			vs := make([]*lattice.Vector, len(args))
			for i, a := range args {
				if vs[i], err = lattice.Parse(a); err != nil {
					return fmt.Errorf("vector %d: %w", i, err)
				}
				if err := lattice.CheckDim(vs[i], vs[0].Dim()); err != nil {
					return fmt.Errorf("vector %d: %w", i, err)
				}
			}
			opts := cfg.Sieve
			engine, err := sketch.New(vs[0].Dim(), opts.Seed, func(o *sketch.Options) {
				o.Bits = opts.SketchBits
				o.Blocks = opts.SketchBlocks
				o.Transforms = opts.SketchTransforms
			})
			if err != nil {
				return err
			}
			if err := sketch.ValidateBands(opts.OuterBands, opts.SketchBits); err != nil {
				return err
			}
			return printSketches(cmd.OutOrStdout(), engine, vs, opts.OuterBands)
		},
	}
	cmd.Flags().Uint64("seed", 0, "Master seed")
	return cmd
}

func printSketches(w io.Writer, engine *sketch.Engine, vs []*lattice.Vector, bands []sketch.Band) error {
	sks := make([]sketch.Sketch, len(vs))
	for i, v := range vs {
		sks[i] = engine.Compute(v)
		var sb strings.Builder
		for _, word := range sks[i].Words() {
			fmt.Fprintf(&sb, "%016x", word)
		}
		fmt.Fprintf(w, "v%d %s %s\n", i, v, sb.String())
	}
	for i := range vs {
		for j := i + 1; j < len(vs); j++ {
			fmt.Fprintf(w, "v%d v%d", i, j)
			for b := 0; b < sks[i].Blocks(); b++ {
				fmt.Fprintf(w, " %d", sketch.Hamming(sks[i], sks[j], b))
			}
			verdict := "filtered"
			if sketch.Promising(sks[i], sks[j], bands) {
				verdict = "promising"
			}
			fmt.Fprintf(w, " %s\n", verdict)
		}
	}
	return nil
}
