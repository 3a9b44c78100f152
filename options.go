package latsieve

import (
	"time"

	"github.com/hupe1980/latsieve/sampler"
	"github.com/hupe1980/latsieve/sketch"
)

// Options configures a Sieve.
type Options struct {
	// SketchBits is the width of one sketch block in bits.
	SketchBits int `yaml:"sketch_bits"`
	// SketchBlocks is the number of sketch blocks per vector.
	SketchBlocks int `yaml:"sketch_blocks"`
	// SketchTransforms is the number of permute/sign/transform rounds.
	SketchTransforms int `yaml:"sketch_transforms"`

	// OuterBands filter candidate/list pairs before an exact inner product.
	OuterBands []sketch.Band `yaml:"outer_bands"`
	// InnerBands filter list/list pairs before a 3-reduction attempt.
	InnerBands []sketch.Band `yaml:"inner_bands"`
	// ExactOnly disables both sketch filters.
	ExactOnly bool `yaml:"exact_only"`

	// ThreeReductionCosine is the squared normalized inner product above
	// which a list entry is kept for 3-reduction attempts.
	ThreeReductionCosine float64 `yaml:"three_reduction_cosine"`

	// Arity is 2 for the pair sieve or 3 for the triple sieve.
	Arity int `yaml:"arity"`

	// Workers is the number of concurrent sieve workers.
	Workers int `yaml:"workers"`

	// Seed is the master seed of the sketch engine and the samplers.
	Seed uint64 `yaml:"seed"`

	// QueuePriority pops the shortest pending vector first.
	QueuePriority bool `yaml:"queue_priority"`

	// SamplerEta is the coefficient bound of the default basis sampler.
	SamplerEta int `yaml:"sampler_eta"`

	// TargetNorm2 stops the run once a vector of at most this squared norm is
	// found. Zero disables it.
	TargetNorm2 float64 `yaml:"target_norm2"`
	// CollisionBudget stops the run after this many collisions. Zero
	// disables it.
	CollisionBudget uint64 `yaml:"collision_budget"`
	// ListSizeBudget stops the run once the list holds this many entries.
	// Zero disables it.
	ListSizeBudget int `yaml:"list_size_budget"`
	// CandidateBudget stops the run after this many processed candidates.
	// Zero disables it.
	CandidateBudget uint64 `yaml:"candidate_budget"`
	// CollisionRatio and CollisionSlack configure the heuristic stop rule
	// collisions > ratio·maxListLen + slack. Both zero disable it.
	CollisionRatio float64 `yaml:"collision_ratio"`
	CollisionSlack uint64  `yaml:"collision_slack"`

	// Termination overrides the conditions built from the budgets above.
	Termination TerminationCondition `yaml:"-"`

	// Sampler builds the per-worker fallback samplers. Defaults to a
	// BasisSampler over the basis.
	Sampler sampler.Factory `yaml:"-"`

	// Logger receives run events. Defaults to NoopLogger.
	Logger *Logger `yaml:"-"`

	// MetricsCollector receives sieve events. Defaults to NoopMetricsCollector.
	MetricsCollector MetricsCollector `yaml:"-"`

	// ProgressInterval is the minimum time between progress logs. Zero
	// disables progress logging.
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// DefaultOptions contains the default sieve options.
var DefaultOptions = Options{
	SketchBits:           sketch.DefaultBits,
	SketchBlocks:         sketch.DefaultBlocks,
	SketchTransforms:     sketch.DefaultTransforms,
	OuterBands:           []sketch.Band{{Lower: 50, Upper: 78}},
	InnerBands:           []sketch.Band{{Lower: 50, Upper: 78}},
	ThreeReductionCosine: 0.1024,
	Arity:                3,
	Workers:              1,
	SamplerEta:           sampler.DefaultOptions.Eta,
	CollisionRatio:       0.1,
	CollisionSlack:       200,
	ProgressInterval:     10 * time.Second,
}

// validate checks o before any sieve state is built.
func (o *Options) validate() error {
	if o.SketchBits <= 0 {
		return configErrorf("SketchBits", nil, "must be positive, got %d", o.SketchBits)
	}
	if o.SketchBlocks <= 0 {
		return configErrorf("SketchBlocks", nil, "must be positive, got %d", o.SketchBlocks)
	}
	if o.SketchTransforms <= 0 {
		return configErrorf("SketchTransforms", nil, "must be positive, got %d", o.SketchTransforms)
	}
	if !o.ExactOnly {
		if err := sketch.ValidateBands(o.OuterBands, o.SketchBits); err != nil {
			return configErrorf("OuterBands", err, "%v", err)
		}
		if o.Arity == 3 {
			if err := sketch.ValidateBands(o.InnerBands, o.SketchBits); err != nil {
				return configErrorf("InnerBands", err, "%v", err)
			}
		}
	}
	if o.ThreeReductionCosine < 0 || o.ThreeReductionCosine > 1 {
		return configErrorf("ThreeReductionCosine", nil, "must be in [0, 1], got %g", o.ThreeReductionCosine)
	}
	if o.Arity != 2 && o.Arity != 3 {
		return configErrorf("Arity", nil, "must be 2 or 3, got %d", o.Arity)
	}
	if o.Workers < 1 {
		return configErrorf("Workers", nil, "must be at least 1, got %d", o.Workers)
	}
	if o.Sampler == nil && (o.SamplerEta < 1 || o.SamplerEta > 8) {
		return configErrorf("SamplerEta", nil, "must be in [1, 8], got %d", o.SamplerEta)
	}
	if o.TargetNorm2 < 0 {
		return configErrorf("TargetNorm2", nil, "must not be negative")
	}
	if o.ListSizeBudget < 0 {
		return configErrorf("ListSizeBudget", nil, "must not be negative")
	}
	if o.CollisionRatio < 0 {
		return configErrorf("CollisionRatio", nil, "must not be negative")
	}
	if o.ProgressInterval < 0 {
		return configErrorf("ProgressInterval", nil, "must not be negative")
	}
	return nil
}

// termination returns the configured termination condition.
func (o *Options) termination() (TerminationCondition, error) {
	if o.Termination != nil {
		return o.Termination, nil
	}
	var conds []TerminationCondition
	if o.TargetNorm2 > 0 {
		conds = append(conds, TargetNorm(o.TargetNorm2))
	}
	if o.CollisionBudget > 0 {
		conds = append(conds, CollisionBudget(o.CollisionBudget))
	}
	if o.ListSizeBudget > 0 {
		conds = append(conds, ListSizeBudget(o.ListSizeBudget))
	}
	if o.CandidateBudget > 0 {
		conds = append(conds, CandidateBudget(o.CandidateBudget))
	}
	if o.CollisionRatio > 0 || o.CollisionSlack > 0 {
		conds = append(conds, HeuristicCollisions(o.CollisionRatio, o.CollisionSlack))
	}
	if len(conds) == 0 {
		return nil, configErrorf("Termination", nil, "no termination condition configured")
	}
	return AnyOf(conds...), nil
}
