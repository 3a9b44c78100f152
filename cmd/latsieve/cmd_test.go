package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/latsieve/blobstore"
	"github.com/hupe1980/latsieve/checkpoint"
	"github.com/hupe1980/latsieve/lattice"
	"github.com/hupe1980/latsieve/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// setupRun writes a basis and a config into a temp dir and returns the
// config path and the checkpoint directory.
func setupRun(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	rng := testutil.NewRNG(3)
	var basis bytes.Buffer
	require.NoError(t, lattice.FormatBasis(&basis, rng.ScrambledIdentity(6, 20)))
	basisPath := writeFile(t, dir, "basis.txt", basis.String())
	ckptDir := filepath.Join(dir, "ckpt")

	cfg := fmt.Sprintf(`
basis: %s
sieve:
  arity: 2
  seed: 5
  exact_only: true
  candidate_budget: 300
store:
  kind: local
  path: %s
checkpoint:
  name: run/
  every: 0s
  keep: 2
  compression: zstd
log:
  level: error
`, basisPath, ckptDir)
	return writeFile(t, dir, "latsieve.yaml", cfg), ckptDir
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "latsieve", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "resume", "inspect", "sketch"}, names)
}

func TestRunCommand_Flags(t *testing.T) {
	run := newRunCmd(false)
	assert.Equal(t, "run", run.Use)
	for _, name := range []string{"basis", "workers", "arity", "seed", "target", "candidates", "collisions", "list-size", "exact", "every", "store", "json", "fresh"} {
		assert.NotNil(t, run.Flags().Lookup(name), name)
	}
	assert.Equal(t, "b", run.Flags().Lookup("basis").Shorthand)

	resume := newRunCmd(true)
	assert.Equal(t, "resume", resume.Use)
	assert.Nil(t, resume.Flags().Lookup("fresh"))
}

func TestRunCommand_FlagsOverrideConfig(t *testing.T) {
	cfgPath, _ := setupRun(t)
	cmd := newRunCmd(false)
	cmd.Flags().String("config", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath, "--arity", "3", "--workers", "2", "--target", "4", "--store", "elsewhere"}))

	cfg, err := loadCommandConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Sieve.Arity)
	assert.Equal(t, 2, cfg.Sieve.Workers)
	assert.Equal(t, 4.0, cfg.Sieve.TargetNorm2)
	assert.Equal(t, uint64(5), cfg.Sieve.Seed)
	assert.Equal(t, StoreConfig{Kind: "local", Path: "elsewhere"}, cfg.Store)
}

func TestRunCommand_NoBasis(t *testing.T) {
	_, _, err := execute(t, "run", "--store", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no basis")
}

func TestRunResumeInspect(t *testing.T) {
	cfgPath, ckptDir := setupRun(t)

	out, _, err := execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "state:      finished")
	assert.Contains(t, out, "shortest:")

	store := blobstore.NewLocalStore(ckptDir)
	name, err := checkpoint.Latest(context.Background(), store, "run/")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "run/"))

	// A second run refuses to mix with the existing checkpoints.
	_, _, err = execute(t, "run", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--fresh")

	// Resuming a finished run reports the stored result.
	out, _, err = execute(t, "resume", "--config", cfgPath, "--json")
	require.NoError(t, err)
	var res result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "finished", res.State)
	assert.NotEmpty(t, res.Reason)
	assert.NotEmpty(t, res.Shortest)

	out, _, err = execute(t, "inspect", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, name)
	assert.Contains(t, out, "zstd")
	assert.Contains(t, out, "dimension:   6")
	assert.Contains(t, out, "candidates")

	out, _, err = execute(t, "run", "--config", cfgPath, "--fresh")
	require.NoError(t, err)
	assert.Contains(t, out, "finished")
}

func TestRunCommand_Checkpoints(t *testing.T) {
	cfgPath, ckptDir := setupRun(t)

	_, _, err := execute(t, "run", "--config", cfgPath, "--every", "1ns", "--candidates", "200")
	require.NoError(t, err)

	names, err := blobstore.NewLocalStore(ckptDir).List(context.Background(), "run/")
	require.NoError(t, err)
	assert.NotEmpty(t, names)
	assert.LessOrEqual(t, len(names), 2)
}

func TestResume_NoCheckpoint(t *testing.T) {
	cfgPath, _ := setupRun(t)
	_, _, err := execute(t, "resume", "--config", cfgPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSketchCommand(t *testing.T) {
	out, _, err := execute(t, "sketch", "--seed", "7", "[1 2 4 8]", "[1 2 4 8]", "[-1 -2 -4 -8]")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "v0 [1 2 4 8] "))
	// Equal vectors have distance zero, opposite vectors the full width.
	assert.Equal(t, "v0 v1 0 promising", lines[3])
	assert.Equal(t, "v0 v2 128 promising", lines[4])
}

func TestSketchCommand_Errors(t *testing.T) {
	_, _, err := execute(t, "sketch", "[1 2]")
	require.Error(t, err)

	_, _, err = execute(t, "sketch", "[1 2]", "[1 2 3]")
	require.Error(t, err)

	_, _, err = execute(t, "sketch", "[1 2", "[1 2]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector 0")
}
