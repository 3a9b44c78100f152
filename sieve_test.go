package latsieve

import (
	"bytes"
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/hupe1980/latsieve/lattice"
	"github.com/hupe1980/latsieve/sampler"
	"github.com/hupe1980/latsieve/sketch"
	"github.com/hupe1980/latsieve/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exact(o *Options) { o.ExactOnly = true }

func budget(n uint64) func(o *Options) {
	return func(o *Options) {
		o.CandidateBudget = n
		o.CollisionRatio = 0
		o.CollisionSlack = 0
	}
}

func mustNew(t *testing.T, basis []*lattice.Vector, optFns ...func(o *Options)) *Sieve {
	t.Helper()
	s, err := New(basis, optFns...)
	require.NoError(t, err)
	return s
}

func TestSieve_PairReductionScenario(t *testing.T) {
	b1, b2 := lattice.New(2, 1), lattice.New(1, 2)
	for _, arity := range []int{2, 3} {
		s := mustNew(t, []*lattice.Vector{b1, b2}, exact, func(o *Options) { o.Arity = arity })
		require.NoError(t, s.Restore(&Snapshot{
			Dimension: 2,
			Seed:      s.Options().Seed,
			List:      []*lattice.Vector{b2},
			Queue:     []*lattice.Vector{b1},
		}))

		require.NoError(t, s.Step(context.Background()))

		sh, ok := s.Shortest()
		require.True(t, ok)
		assert.Equal(t, 0, sh.Norm2().Cmp(big.NewInt(2)))
		assert.True(t, sh.Equal(lattice.New(1, -1)))

		list := s.List()
		require.Len(t, list, 2)
		assert.True(t, list[0].Equal(lattice.New(1, -1)))
		assert.True(t, list[1].Equal(b2))

		st := s.Stats()
		assert.Equal(t, uint64(1), st.Reductions2)
		assert.Equal(t, uint64(0), st.Collisions)
		assert.Equal(t, StateSuspended, s.State())
	}
}

func TestSieve_Collision(t *testing.T) {
	b := lattice.New(1, 2)
	s := mustNew(t, []*lattice.Vector{b}, exact)
	require.NoError(t, s.Restore(&Snapshot{
		Dimension: 2,
		Seed:      s.Options().Seed,
		List:      []*lattice.Vector{b},
		Queue:     []*lattice.Vector{lattice.New(1, 2)},
	}))

	require.NoError(t, s.Step(context.Background()))

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Collisions)
	assert.Equal(t, 1, s.ListLen())
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, uint64(0), st.Inserts)
	assert.Equal(t, uint64(0), st.Requeues)
}

func TestSieve_LongerEntryIsRequeued(t *testing.T) {
	long := lattice.New(5, 1)
	p := lattice.New(1, 0)
	s := mustNew(t, []*lattice.Vector{long}, exact, func(o *Options) { o.Arity = 2 })
	require.NoError(t, s.Restore(&Snapshot{
		Dimension: 2,
		Seed:      s.Options().Seed,
		List:      []*lattice.Vector{long},
		Queue:     []*lattice.Vector{p},
	}))

	require.NoError(t, s.Step(context.Background()))

	// (5,1) − 5·(1,0) = (0,1) goes back to the queue; (1,0) is inserted.
	list := s.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Equal(p))
	require.Equal(t, 1, s.QueueLen())

	snap, err := s.Export()
	require.NoError(t, err)
	assert.True(t, snap.Queue[0].Equal(lattice.New(0, 1)))
	for _, v := range snap.List {
		assert.NotSame(t, v, snap.Queue[0], "vector reachable from list and queue")
	}
	assert.Equal(t, uint64(1), s.Stats().LongerReductions)
	assert.Equal(t, uint64(1), s.Stats().Requeues)
}

func TestSieve_ThreeReduction(t *testing.T) {
	// No pair of x1, x2, p is 2-reducible, but p − x1 − x2 is shorter than p.
	x1 := lattice.New(2, 0, 0)
	x2 := lattice.New(-1, 2, 0)
	p := lattice.New(1, 1, 2)
	require.False(t, lattice.Reduces(lattice.Dot(x1, x2), x1.Norm2()))
	require.False(t, lattice.Reduces(lattice.Dot(p, x1), x1.Norm2()))
	require.False(t, lattice.Reduces(lattice.Dot(p, x2), x2.Norm2()))

	s := mustNew(t, []*lattice.Vector{x1}, exact, func(o *Options) {
		o.Arity = 3
		o.ThreeReductionCosine = 0.01
	})
	require.NoError(t, s.Restore(&Snapshot{
		Dimension: 3,
		Seed:      s.Options().Seed,
		List:      []*lattice.Vector{x1, x2},
		Queue:     []*lattice.Vector{p},
	}))

	require.NoError(t, s.Step(context.Background()))

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Reductions3)
	assert.Equal(t, uint64(0), st.Reductions2)
	list := s.List()
	require.Len(t, list, 3)
	assert.True(t, list[2].Equal(lattice.New(0, -1, 2)))
	sh, ok := s.Shortest()
	require.True(t, ok)
	assert.Equal(t, 5.0, sh.Norm2Float())
}

func TestSieve_ThreeReductionReplacesLongestListEntry(t *testing.T) {
	// x2 is stored before x1 although it is longer. x1 − p − x2 is shorter
	// than x2 but not than x1, so x2 is the entry to replace.
	p := lattice.New(-1, -1, 0)
	x1 := lattice.New(-1, 0, -3)
	x2 := lattice.New(-2, 3, -1)
	want := lattice.New(2, -2, -2)
	require.True(t, lattice.Combine3(x1, -1, p, -1, x2).Equal(want))

	s := mustNew(t, []*lattice.Vector{x1}, exact, func(o *Options) {
		o.Arity = 3
		o.ThreeReductionCosine = 0.01
	})
	require.NoError(t, s.Restore(&Snapshot{
		Dimension: 3,
		Seed:      s.Options().Seed,
		List:      []*lattice.Vector{x2, x1},
		Queue:     []*lattice.Vector{p},
	}))

	require.NoError(t, s.Step(context.Background()))

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Reductions3)
	assert.Equal(t, uint64(0), st.Reductions2)
	assert.Equal(t, uint64(1), st.LongerReductions)
	assert.Equal(t, uint64(1), st.Requeues)

	list := s.List()
	require.Len(t, list, 2)
	assert.True(t, list[0].Equal(p))
	assert.True(t, list[1].Equal(x1))

	snap, err := s.Export()
	require.NoError(t, err)
	require.Len(t, snap.Queue, 1)
	assert.True(t, snap.Queue[0].Equal(want))
}

func TestSieve_ThreeReductionDisabledForArityTwo(t *testing.T) {
	x1 := lattice.New(2, 0, 0)
	x2 := lattice.New(-1, 2, 0)
	p := lattice.New(1, 1, 2)

	s := mustNew(t, []*lattice.Vector{x1}, exact, func(o *Options) { o.Arity = 2 })
	require.NoError(t, s.Restore(&Snapshot{
		Dimension: 3,
		Seed:      s.Options().Seed,
		List:      []*lattice.Vector{x1, x2},
		Queue:     []*lattice.Vector{p},
	}))

	require.NoError(t, s.Step(context.Background()))

	assert.Equal(t, uint64(0), s.Stats().Reductions3)
	list := s.List()
	require.Len(t, list, 3)
	assert.True(t, list[2].Equal(p))
}

func TestSieve_ShortestNonIncreasing(t *testing.T) {
	rng := testutil.NewRNG(42)
	basis := rng.ScrambledIdentity(8, 40)
	s := mustNew(t, basis, exact, func(o *Options) { o.Seed = 3 })

	ctx := context.Background()
	last := -1.0
	for i := 0; i < 400; i++ {
		require.NoError(t, s.Step(ctx))
		sh, ok := s.Shortest()
		if !ok {
			continue
		}
		n := sh.Norm2Float()
		if last >= 0 {
			assert.LessOrEqual(t, n, last)
		}
		last = n
	}
	assert.LessOrEqual(t, last, testutil.MeanNorm(basis))
}

func TestSieve_RunFindsUnitVector(t *testing.T) {
	rng := testutil.NewRNG(7)
	basis := rng.ScrambledIdentity(10, 50)
	s := mustNew(t, basis, exact, budget(20000), func(o *Options) {
		o.TargetNorm2 = 1
		o.Seed = 11
	})

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, StateFinished, s.State())
	sh, ok := s.Shortest()
	require.True(t, ok)
	assert.Equal(t, 1.0, sh.Norm2Float())
	assert.Contains(t, s.Reason(), "target norm")
}

func TestSieve_ListPairwiseReduced(t *testing.T) {
	rng := testutil.NewRNG(9)
	basis := rng.ScrambledIdentity(8, 30)
	s := mustNew(t, basis, exact, budget(600), func(o *Options) { o.Arity = 2 })

	require.NoError(t, s.Run(context.Background()))

	list := s.List()
	for i := range list {
		assert.False(t, list[i].IsZero())
		if i > 0 {
			assert.LessOrEqual(t, list[i-1].CmpNorm(list[i]), 0, "list sorted")
		}
		for j := i + 1; j < len(list); j++ {
			a, b := list[i], list[j]
			n := a.Norm2()
			if b.CmpNorm(a) < 0 {
				n = b.Norm2()
			}
			assert.False(t, lattice.Reduces(lattice.Dot(a, b), n), "%v and %v reduce each other", a, b)
		}
	}
}

func TestSieve_SketchFilteredRun(t *testing.T) {
	rng := testutil.NewRNG(5)
	basis := rng.ScrambledIdentity(16, 60)
	m := &BasicMetricsCollector{}
	s := mustNew(t, basis, budget(1500), func(o *Options) {
		o.MetricsCollector = m
		o.Seed = 99
	})

	require.NoError(t, s.Run(context.Background()))

	st := s.Stats()
	assert.Equal(t, StateFinished, s.State())
	assert.Equal(t, uint64(1500), st.Candidates)
	assert.Greater(t, st.SketchComparisons, uint64(0))
	assert.LessOrEqual(t, st.ScalarProducts, st.SketchComparisons)

	sh, ok := s.Shortest()
	require.True(t, ok)
	basisMin := basis[0].Norm2Float()
	for _, b := range basis[1:] {
		basisMin = min(basisMin, b.Norm2Float())
	}
	assert.LessOrEqual(t, sh.Norm2Float(), basisMin)

	ms := m.GetStats()
	assert.Equal(t, int64(st.Collisions), ms.Collisions)
	assert.Equal(t, int64(st.Inserts), ms.Inserts)
	assert.Equal(t, int64(st.Reductions2), ms.Reductions2)
	assert.Equal(t, int64(st.SketchComparisons), ms.SketchComparisons)
	assert.Equal(t, int64(st.MaxListLen), ms.MaxListLen)
}

func TestSieve_ConcurrentWorkers(t *testing.T) {
	rng := testutil.NewRNG(13)
	basis := rng.ScrambledIdentity(12, 50)
	s := mustNew(t, basis, budget(3000), func(o *Options) {
		o.Workers = 4
		o.Seed = 17
	})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, StateFinished, s.State())

	st := s.Stats()
	list := s.List()
	assert.Equal(t, len(list), st.ListLen)
	assert.Equal(t, st.Inserts-st.LongerReductions, uint64(st.ListLen))
	assert.GreaterOrEqual(t, st.Candidates, uint64(3000))

	seen := make(map[*lattice.Vector]bool)
	for _, v := range list {
		assert.False(t, v.IsZero())
		assert.Equal(t, 12, v.Dim())
		assert.False(t, seen[v], "vector stored twice")
		seen[v] = true
	}
	snap, err := s.Export()
	require.NoError(t, err)
	for _, v := range snap.Queue {
		assert.False(t, seen[v], "vector in list and queue")
	}
	assert.Len(t, snap.SamplerCounters, 4)
}

func TestSieve_CancelSuspendsAndResumes(t *testing.T) {
	rng := testutil.NewRNG(21)
	s := mustNew(t, rng.ScrambledIdentity(6, 20), budget(100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateSuspended, s.State())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, StateFinished, s.State())
	assert.Equal(t, uint64(100), s.Stats().Candidates)

	assert.ErrorIs(t, s.Run(context.Background()), ErrFinished)
}

func TestSieve_ResumeIsDeterministic(t *testing.T) {
	basis := testutil.NewRNG(31).ScrambledIdentity(10, 40)
	opts := func(n uint64) []func(o *Options) {
		return []func(o *Options){budget(n), func(o *Options) { o.Seed = 5 }}
	}

	direct := mustNew(t, basis, opts(400)...)
	require.NoError(t, direct.Run(context.Background()))

	first := mustNew(t, basis, opts(150)...)
	require.NoError(t, first.Run(context.Background()))
	snap, err := first.Export()
	require.NoError(t, err)
	snap.State = StateSuspended

	resumed := mustNew(t, basis, opts(400)...)
	require.NoError(t, resumed.Restore(snap))
	require.NoError(t, resumed.Run(context.Background()))

	a, b := direct.List(), resumed.List()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.True(t, a[i].Equal(b[i]))
	}
	assert.Equal(t, direct.Stats(), resumed.Stats())
}

func TestSieve_SamplerDimensionMismatch(t *testing.T) {
	bad := func(int, uint64) (sampler.Sampler, error) {
		return sampler.Func(func() *lattice.Vector { return lattice.New(1, 1, 1) }), nil
	}
	s := mustNew(t, []*lattice.Vector{lattice.New(1, 0), lattice.New(0, 1)}, budget(10), func(o *Options) {
		o.Sampler = bad
	})

	err := s.Run(context.Background())
	var dm *lattice.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, StateError, s.State())
	assert.ErrorAs(t, s.Run(context.Background()), &dm)
}

func TestNew_ConfigErrors(t *testing.T) {
	basis := []*lattice.Vector{lattice.New(1, 0), lattice.New(0, 1)}
	tests := []struct {
		name  string
		field string
		fn    func(o *Options)
	}{
		{"arity", "Arity", func(o *Options) { o.Arity = 4 }},
		{"workers", "Workers", func(o *Options) { o.Workers = 0 }},
		{"bits", "SketchBits", func(o *Options) { o.SketchBits = 0 }},
		{"outer band order", "OuterBands", func(o *Options) { o.OuterBands = []sketch.Band{{Lower: 80, Upper: 40}} }},
		{"inner band width", "InnerBands", func(o *Options) { o.InnerBands = []sketch.Band{{Lower: 10, Upper: 400}} }},
		{"cosine", "ThreeReductionCosine", func(o *Options) { o.ThreeReductionCosine = 2 }},
		{"eta", "SamplerEta", func(o *Options) { o.SamplerEta = 9 }},
		{"termination", "Termination", func(o *Options) { o.CollisionRatio, o.CollisionSlack = 0, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(basis, tt.fn)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	_, err := New(basis, func(o *Options) {
		o.OuterBands = []sketch.Band{{Lower: 80, Upper: 40}}
	})
	assert.ErrorIs(t, err, sketch.ErrInvalidBand)

	_, err = New(nil)
	assert.ErrorIs(t, err, lattice.ErrEmptyBasis)

	_, err = New([]*lattice.Vector{lattice.New(1, 0), lattice.New(1)})
	var dm *lattice.DimensionMismatchError
	assert.ErrorAs(t, err, &dm)
}

func TestSieve_RestoreValidation(t *testing.T) {
	s := mustNew(t, []*lattice.Vector{lattice.New(1, 0)})
	before, err := s.Export()
	require.NoError(t, err)

	err = s.Restore(&Snapshot{Dimension: 3})
	var dm *lattice.DimensionMismatchError
	assert.ErrorAs(t, err, &dm)

	err = s.Restore(&Snapshot{Dimension: 2, List: []*lattice.Vector{lattice.New(0, 0)}})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
	assert.ErrorIs(t, err, lattice.ErrZeroVector)

	err = s.Restore(&Snapshot{Dimension: 2, Queue: []*lattice.Vector{lattice.New(0, 0)}})
	assert.ErrorIs(t, err, lattice.ErrZeroVector)

	err = s.Restore(&Snapshot{Dimension: 2, Counters: map[string]uint64{"bogus": 1}})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	after, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, len(before.Queue), len(after.Queue), "failed restore left state untouched")
	assert.Equal(t, StateInit, s.State())
}

func TestSieve_Close(t *testing.T) {
	s := mustNew(t, []*lattice.Vector{lattice.New(1, 0)})
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Run(context.Background()), ErrClosed)
	_, err := s.Export()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSieve_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := mustNew(t, testutil.NewRNG(3).ScrambledIdentity(4, 10), budget(20), func(o *Options) {
		o.Logger = logger
	})

	require.NoError(t, s.Run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "sieve started")
	assert.Contains(t, out, "sieve finished")
	assert.Contains(t, out, "new shortest vector")
	assert.Contains(t, out, `"dimension":4`)
}

func TestState_String(t *testing.T) {
	for _, st := range []State{StateInit, StateRunning, StateFinished, StateSuspended, StateError} {
		got, err := ParseState(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	_, err := ParseState("bogus")
	assert.Error(t, err)
}

func TestTransitionError(t *testing.T) {
	var err error = &TransitionError{Op: "run", State: StateError}
	assert.EqualError(t, err, "run: not allowed in state error")

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StateError, te.State)
}
