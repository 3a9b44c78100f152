package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/latsieve"
	"github.com/hupe1980/latsieve/blobstore"
	"github.com/hupe1980/latsieve/checkpoint"
	"github.com/hupe1980/latsieve/lattice"
	"github.com/spf13/cobra"
)

func newRunCmd(resume bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a new sieve run",
		Long: `Start a new sieve run on the configured basis.

The run is checkpointed to the configured store every checkpoint.every and
once more when it finishes or is interrupted. Starting a run fails when
checkpoints already exist under checkpoint.name unless --fresh is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSieve(cmd, resume)
		},
	}
	if resume {
		cmd.Use = "resume"
		cmd.Short = "Resume a run from its latest checkpoint"
		cmd.Long = `Resume the run whose latest checkpoint is stored under checkpoint.name.

The basis and sieve options are read as for run; the list, the queue, the
counters and the sampler positions come from the checkpoint.`
	} else {
		cmd.Flags().Bool("fresh", false, "Delete existing checkpoints before starting")
	}

	f := cmd.Flags()
	f.StringP("basis", "b", "", "Basis file in [[a b ...] [c d ...] ...] form")
	f.IntP("workers", "w", 0, "Number of sieve workers")
	f.Int("arity", 0, "Reduction arity (2 or 3)")
	f.Uint64("seed", 0, "Master seed")
	f.Float64("target", 0, "Stop once a vector of at most this squared norm is found")
	f.Uint64("candidates", 0, "Stop after this many processed candidates")
	f.Uint64("collisions", 0, "Stop after this many collisions")
	f.Int("list-size", 0, "Stop once the list holds this many vectors")
	f.Bool("exact", false, "Disable sketch filtering")
	f.Duration("every", 0, "Checkpoint interval")
	f.String("store", "", "Checkpoint store directory (local store)")
	f.Bool("json", false, "Print the result as JSON")
	return cmd
}

// loadCommandConfig loads the --config file and applies the flags that were
// set explicitly.
func loadCommandConfig(cmd *cobra.Command) (Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("basis") {
		cfg.Basis, _ = f.GetString("basis")
	}
	if f.Changed("workers") {
		cfg.Sieve.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("arity") {
		cfg.Sieve.Arity, _ = f.GetInt("arity")
	}
	if f.Changed("seed") {
		cfg.Sieve.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("target") {
		cfg.Sieve.TargetNorm2, _ = f.GetFloat64("target")
	}
	if f.Changed("candidates") {
		cfg.Sieve.CandidateBudget, _ = f.GetUint64("candidates")
	}
	if f.Changed("collisions") {
		cfg.Sieve.CollisionBudget, _ = f.GetUint64("collisions")
	}
	if f.Changed("list-size") {
		cfg.Sieve.ListSizeBudget, _ = f.GetInt("list-size")
	}
	if f.Changed("exact") {
		cfg.Sieve.ExactOnly, _ = f.GetBool("exact")
	}
	if f.Changed("every") {
		cfg.Checkpoint.Every, _ = f.GetDuration("every")
	}
	if f.Changed("store") {
		cfg.Store = StoreConfig{Kind: "local"}
		cfg.Store.Path, _ = f.GetString("store")
	}
	return cfg, cfg.Validate()
}

func readBasis(path string) ([]*lattice.Vector, error) {
	if path == "" {
		return nil, errors.New("no basis given; use --basis or the basis config key")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	basis, err := lattice.ParseBasis(f)
	if err != nil {
		return nil, fmt.Errorf("basis %s: %w", path, err)
	}
	return basis, nil
}

func runSieve(cmd *cobra.Command, resume bool) error {
	cfg, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	basis, err := readBasis(cfg.Basis)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	s, err := latsieve.New(basis, func(o *latsieve.Options) {
		*o = cfg.Sieve
		o.Logger = logger
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if resume {
		name, err := checkpoint.Latest(ctx, store, cfg.Checkpoint.Name)
		if err != nil {
			return err
		}
		snap, err := checkpoint.Load(ctx, store, name)
		if err != nil {
			return err
		}
		if err := s.Restore(snap); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "resuming %s (%d candidates)\n", name, s.Stats().Candidates)
	} else {
		fresh, _ := cmd.Flags().GetBool("fresh")
		if err := prepareFresh(ctx, store, cfg.Checkpoint.Name, fresh); err != nil {
			return err
		}
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if s.State() != latsieve.StateFinished {
		interrupted, err := sieveLoop(ctx, s, store, cfg.Checkpoint)
		if err != nil {
			return err
		}
		if interrupted {
			fmt.Fprintln(cmd.ErrOrStderr(), "interrupted; continue with: latsieve resume")
		}
	}
	return printResult(cmd.OutOrStdout(), s, jsonOut)
}

// prepareFresh makes sure a new run does not mix its checkpoints with those
// of an earlier one.
func prepareFresh(ctx context.Context, store blobstore.Store, prefix string, fresh bool) error {
	_, err := checkpoint.Latest(ctx, store, prefix)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return nil
	case err != nil:
		return err
	case !fresh:
		return fmt.Errorf("checkpoints exist under %q; use resume or --fresh", prefix)
	}
	return checkpoint.Prune(ctx, store, prefix, 0)
}

// sieveLoop runs s in slices of cfg.Every, saving a checkpoint after each
// slice that made progress. It reports whether ctx was cancelled before the run finished.
func sieveLoop(ctx context.Context, s *latsieve.Sieve, store blobstore.Store, cfg CheckpointConfig) (bool, error) {
	comp, err := checkpoint.ParseCompression(cfg.Compression)
	if err != nil {
		return false, err
	}
	save := func(ctx context.Context) error {
		snap, err := s.Export()
		if err != nil {
			return err
		}
		name := checkpoint.Name(cfg.Name, snap.Counters[latsieve.CounterCandidates])
		if err := checkpoint.Save(ctx, store, name, snap, comp); err != nil {
			return err
		}
		return checkpoint.Prune(ctx, store, cfg.Name, cfg.Keep)
	}

	every := cfg.Every
	for {
		before := s.Stats().Candidates
		slice, cancel := ctx, context.CancelFunc(func() {})
		if every > 0 {
			slice, cancel = context.WithTimeout(ctx, every)
		}
		err := s.Run(slice)
		cancel()

		switch {
		case err == nil:
			return false, save(context.WithoutCancel(ctx))
		case ctx.Err() != nil:
			return true, save(context.WithoutCancel(ctx))
		case errors.Is(err, context.DeadlineExceeded):
			// A slice too short to process a candidate is lengthened.
			if s.Stats().Candidates == before {
				every *= 2
				continue
			}
			if err := save(ctx); err != nil {
				return false, err
			}
		default:
			return false, err
		}
	}
}

type result struct {
	State    string         `json:"state"`
	Reason   string         `json:"reason,omitempty"`
	Shortest string         `json:"shortest,omitempty"`
	Norm2    string         `json:"norm2,omitempty"`
	Stats    latsieve.Stats `json:"stats"`
}

func printResult(w io.Writer, s *latsieve.Sieve, jsonOut bool) error {
	r := result{
		State:  s.State().String(),
		Reason: s.Reason(),
		Stats:  s.Stats(),
	}
	if v, ok := s.Shortest(); ok {
		r.Shortest = v.String()
		r.Norm2 = v.Norm2().String()
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "state:      %s", r.State)
	if r.Reason != "" {
		fmt.Fprintf(w, " (%s)", r.Reason)
	}
	fmt.Fprintln(w)
	if r.Shortest != "" {
		fmt.Fprintf(w, "shortest:   %s\n", r.Shortest)
		fmt.Fprintf(w, "norm2:      %s\n", r.Norm2)
	}
	fmt.Fprintf(w, "candidates: %d\n", r.Stats.Candidates)
	fmt.Fprintf(w, "collisions: %d\n", r.Stats.Collisions)
	fmt.Fprintf(w, "list:       %d (max %d)\n", r.Stats.ListLen, r.Stats.MaxListLen)
	fmt.Fprintf(w, "queue:      %d\n", r.Stats.QueueLen)
	return nil
}
