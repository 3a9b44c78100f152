package latsieve

import (
	"testing"

	"github.com/hupe1980/latsieve/lattice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminationConditions(t *testing.T) {
	short := lattice.New(1, 1)
	tests := []struct {
		name string
		cond TerminationCondition
		p    Progress
		done bool
	}{
		{"target not reached", TargetNorm(1), Progress{Shortest: short}, false},
		{"target reached", TargetNorm(2), Progress{Shortest: short}, true},
		{"target without shortest", TargetNorm(2), Progress{}, false},
		{"collision budget open", CollisionBudget(3), Progress{Stats: Stats{Collisions: 2}}, false},
		{"collision budget hit", CollisionBudget(3), Progress{Stats: Stats{Collisions: 3}}, true},
		{"list size", ListSizeBudget(10), Progress{Stats: Stats{ListLen: 10}}, true},
		{"candidates", CandidateBudget(5), Progress{Stats: Stats{Candidates: 4}}, false},
		{"heuristic below", HeuristicCollisions(0.1, 200), Progress{Stats: Stats{Collisions: 300, MaxListLen: 1000}}, false},
		{"heuristic equal", HeuristicCollisions(0.1, 200), Progress{Stats: Stats{Collisions: 300, MaxListLen: 1000}}, false},
		{"heuristic above", HeuristicCollisions(0.1, 200), Progress{Stats: Stats{Collisions: 301, MaxListLen: 1000}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, done := tt.cond.Reached(tt.p)
			assert.Equal(t, tt.done, done)
			if done {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestAnyOf(t *testing.T) {
	never := TerminationFunc(func(Progress) (string, bool) { return "", false })
	cond := AnyOf(never, CandidateBudget(2), TerminationFunc(func(Progress) (string, bool) {
		return "custom", true
	}))

	reason, done := cond.Reached(Progress{Stats: Stats{Candidates: 2}})
	require.True(t, done)
	assert.Contains(t, reason, "candidate budget")

	reason, done = cond.Reached(Progress{})
	require.True(t, done)
	assert.Equal(t, "custom", reason)

	_, done = AnyOf().Reached(Progress{})
	assert.False(t, done)
}

func TestOptions_Termination(t *testing.T) {
	o := DefaultOptions
	cond, err := o.termination()
	require.NoError(t, err)
	_, done := cond.Reached(Progress{Stats: Stats{Collisions: 201}})
	assert.True(t, done)

	o.CollisionRatio, o.CollisionSlack = 0, 0
	_, err = o.termination()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	custom := CandidateBudget(1)
	o.Termination = custom
	cond, err = o.termination()
	require.NoError(t, err)
	_, done = cond.Reached(Progress{Stats: Stats{Candidates: 1}})
	assert.True(t, done)
}

func TestCustomTerminationStopsRun(t *testing.T) {
	var calls int
	s := mustNew(t, []*lattice.Vector{lattice.New(3, 1), lattice.New(1, 3)}, func(o *Options) {
		o.Termination = TerminationFunc(func(p Progress) (string, bool) {
			calls++
			return "two candidates", p.Candidates >= 2
		})
	})

	require.NoError(t, s.Run(t.Context()))
	assert.Equal(t, "two candidates", s.Reason())
	assert.Equal(t, uint64(2), s.Stats().Candidates)
	assert.Equal(t, 3, calls)
}
