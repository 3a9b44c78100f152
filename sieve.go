package latsieve

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/latsieve/internal/candidate"
	"github.com/hupe1980/latsieve/internal/queue"
	"github.com/hupe1980/latsieve/lattice"
	"github.com/hupe1980/latsieve/sampler"
	"github.com/hupe1980/latsieve/sketch"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// State is the lifecycle state of a Sieve.
type State int

const (
	// StateInit is the state of a new sieve that has not run yet.
	StateInit State = iota
	// StateRunning is the state while Run is executing.
	StateRunning
	// StateFinished is the state after a termination condition was reached.
	StateFinished
	// StateSuspended is the state after Run was cancelled. Run resumes.
	StateSuspended
	// StateError is the state after a fatal error.
	StateError
)

var stateNames = [...]string{"init", "running", "finished", "suspended", "error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses the name produced by State.String.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// Stats is a snapshot of run statistics.
type Stats struct {
	Candidates        uint64
	Collisions        uint64
	ScalarProducts    uint64
	SketchComparisons uint64
	Reductions2       uint64
	Reductions3       uint64
	LongerReductions  uint64
	Requeues          uint64
	Inserts           uint64
	MaxListLen        int
	ListLen           int
	QueueLen          int
}

type counters struct {
	candidates        atomic.Uint64
	collisions        atomic.Uint64
	scalarProducts    atomic.Uint64
	sketchComparisons atomic.Uint64
	reductions2       atomic.Uint64
	reductions3       atomic.Uint64
	longerReductions  atomic.Uint64
	requeues          atomic.Uint64
	inserts           atomic.Uint64
	maxListLen        atomic.Int64
}

func (c *counters) observeListLen(n int) {
	v := int64(n)
	for {
		cur := c.maxListLen.Load()
		if v <= cur || c.maxListLen.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Sieve is a Gauss sieve over a lattice given by a basis. It keeps a list of
// pairwise reduced vectors and a queue of pending candidates, and reduces
// candidates against the list using 2- and optionally 3-reductions.
type Sieve struct {
	opts     Options
	dim      int
	basis    []*lattice.Vector
	engine   *sketch.Engine
	list     *candidate.List
	queue    *queue.Queue
	samplers []sampler.Sampler
	term     TerminationCondition
	logger   *Logger
	metrics  MetricsCollector
	progress *rate.Sometimes

	mu     sync.Mutex
	state  State
	reason string
	err    error
	closed bool

	shortestMu sync.Mutex
	shortest   *lattice.Vector

	stop atomic.Bool
	c    counters
}

// New creates a Sieve for the lattice spanned by basis. The non-zero basis
// vectors become the first queued candidates. All options are validated
// before any state is built.
func New(basis []*lattice.Vector, optFns ...func(o *Options)) (*Sieve, error) {
	opts := DefaultOptions
	opts.OuterBands = slices.Clone(DefaultOptions.OuterBands)
	opts.InnerBands = slices.Clone(DefaultOptions.InnerBands)
	for _, fn := range optFns {
		fn(&opts)
	}

	if len(basis) == 0 {
		return nil, configErrorf("basis", lattice.ErrEmptyBasis, "empty basis")
	}
	dim := basis[0].Dim()
	for _, b := range basis[1:] {
		if err := lattice.CheckDim(b, dim); err != nil {
			return nil, err
		}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	term, err := opts.termination()
	if err != nil {
		return nil, err
	}
	if opts.Sampler == nil {
		eta := opts.SamplerEta
		opts.Sampler = sampler.BasisFactory(basis, func(o *sampler.Options) { o.Eta = eta })
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = NoopMetricsCollector{}
	}

	s := &Sieve{
		opts:     opts,
		dim:      dim,
		basis:    basis,
		term:     term,
		logger:   opts.Logger.WithDimension(dim).WithSeed(opts.Seed),
		metrics:  opts.MetricsCollector,
		progress: &rate.Sometimes{Interval: opts.ProgressInterval},
	}
	if err := s.reseed(opts.Seed); err != nil {
		return nil, err
	}

	s.list = candidate.New()
	s.queue = s.newQueue()
	for _, b := range basis {
		if !b.IsZero() {
			s.queue.Push(b)
		}
	}
	return s, nil
}

func (s *Sieve) newQueue() *queue.Queue {
	return queue.New(s.samplers[0], func(o *queue.Options) {
		o.Priority = s.opts.QueuePriority
	})
}

// reseed rebuilds the sketch engine and samplers for a master seed.
func (s *Sieve) reseed(master uint64) error {
	engine, samplers, err := s.build(master)
	if err != nil {
		return err
	}
	s.engine, s.samplers = engine, samplers
	s.opts.Seed = master
	return nil
}

func (s *Sieve) build(master uint64) (*sketch.Engine, []sampler.Sampler, error) {
	engine, err := sketch.New(s.dim, master, func(o *sketch.Options) {
		o.Bits = s.opts.SketchBits
		o.Blocks = s.opts.SketchBlocks
		o.Transforms = s.opts.SketchTransforms
	})
	if err != nil {
		return nil, nil, configErrorf("Sketch", err, "%v", err)
	}
	samplers := make([]sampler.Sampler, s.opts.Workers)
	for w := range samplers {
		smp, err := s.opts.Sampler(w, sampler.WorkerSeed(master, w))
		if err != nil {
			return nil, nil, configErrorf("Sampler", err, "worker %d: %v", w, err)
		}
		samplers[w] = smp
	}
	return engine, samplers, nil
}

// Dimension returns the ambient dimension.
func (s *Sieve) Dimension() int { return s.dim }

// Options returns the effective options.
func (s *Sieve) Options() Options { return s.opts }

// State returns the lifecycle state.
func (s *Sieve) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns why the run finished, or the empty string.
func (s *Sieve) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err returns the error that moved the sieve to StateError.
func (s *Sieve) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Shortest returns the shortest vector inserted into the list so far.
func (s *Sieve) Shortest() (*lattice.Vector, bool) {
	s.shortestMu.Lock()
	defer s.shortestMu.Unlock()
	return s.shortest, s.shortest != nil
}

// ListLen returns the number of list entries.
func (s *Sieve) ListLen() int { return s.list.Len() }

// QueueLen returns the number of queued candidates.
func (s *Sieve) QueueLen() int { return s.queue.Len() }

// List returns the list vectors in storage order.
func (s *Sieve) List() []*lattice.Vector { return s.list.Vectors() }

// Stats returns a snapshot of run statistics.
func (s *Sieve) Stats() Stats {
	return Stats{
		Candidates:        s.c.candidates.Load(),
		Collisions:        s.c.collisions.Load(),
		ScalarProducts:    s.c.scalarProducts.Load(),
		SketchComparisons: s.c.sketchComparisons.Load(),
		Reductions2:       s.c.reductions2.Load(),
		Reductions3:       s.c.reductions3.Load(),
		LongerReductions:  s.c.longerReductions.Load(),
		Requeues:          s.c.requeues.Load(),
		Inserts:           s.c.inserts.Load(),
		MaxListLen:        int(s.c.maxListLen.Load()),
		ListLen:           s.list.Len(),
		QueueLen:          s.queue.Len(),
	}
}

// begin moves the sieve into StateRunning. It returns whether the run resumes
// a suspended one.
func (s *Sieve) begin(op string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	switch s.state {
	case StateInit, StateSuspended:
		resumed := s.state == StateSuspended
		s.state = StateRunning
		return resumed, nil
	case StateRunning:
		return false, ErrRunning
	case StateFinished:
		return false, ErrFinished
	case StateError:
		return false, s.err
	}
	return false, &TransitionError{Op: op, State: s.state}
}

// Run sieves until a termination condition holds, ctx is cancelled or an
// error occurs. Cancellation suspends the sieve and Run returns ctx.Err();
// a later Run resumes. Cancellation and termination are only checked between
// candidates.
func (s *Sieve) Run(ctx context.Context) error {
	resumed, err := s.begin("run")
	if err != nil {
		return err
	}
	s.stop.Store(false)
	start := time.Now()
	s.logger.LogStart(ctx, s.opts.Workers, s.list.Len(), s.queue.Len(), resumed)

	workers := make([]*worker, s.opts.Workers)
	for i := range workers {
		workers[i] = s.newWorker(i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error { return s.work(gctx, w) })
	}
	runErr := g.Wait()

	for _, w := range workers {
		w.close()
	}
	// No worker is pinned any more.
	for _, w := range workers {
		w.sess.Drain()
	}

	st := s.Stats()
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.reason != "":
		s.state = StateFinished
		s.logger.LogFinish(ctx, s.reason, st, time.Since(start), nil)
		return nil
	case runErr != nil && ctx.Err() != nil:
		s.state = StateSuspended
		s.logger.LogSuspend(ctx, st, ctx.Err())
		return ctx.Err()
	case runErr != nil:
		s.state = StateError
		s.err = runErr
		s.logger.LogFinish(ctx, "", st, time.Since(start), runErr)
		return runErr
	default:
		s.state = StateSuspended
		return nil
	}
}

// Step processes exactly one candidate on the calling goroutine without
// evaluating termination conditions. The sieve is left suspended.
func (s *Sieve) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.begin("step"); err != nil {
		return err
	}
	w := s.newWorker(0)
	err := s.process(ctx, w)
	w.close()
	w.sess.Drain()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateError
		s.err = err
		return err
	}
	s.state = StateSuspended
	return nil
}

func (s *Sieve) work(ctx context.Context, w *worker) error {
	for {
		if s.stop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if reason, done := s.term.Reached(s.progressView()); done {
			s.finish(reason)
			return nil
		}
		if err := s.process(ctx, w); err != nil {
			return err
		}
		if s.opts.ProgressInterval > 0 {
			s.progress.Do(func() {
				s.logger.LogProgress(ctx, s.Stats(), s.shortestNorm())
			})
		}
	}
}

func (s *Sieve) finish(reason string) {
	s.mu.Lock()
	if s.reason == "" {
		s.reason = reason
	}
	s.mu.Unlock()
	s.stop.Store(true)
}

func (s *Sieve) progressView() Progress {
	sh, _ := s.Shortest()
	return Progress{Stats: s.Stats(), Shortest: sh}
}

func (s *Sieve) shortestNorm() float64 {
	sh, ok := s.Shortest()
	if !ok {
		return 0
	}
	return sh.Norm2Float()
}

// offerShortest records v if it is shorter than the current record.
func (s *Sieve) offerShortest(v *lattice.Vector) bool {
	s.shortestMu.Lock()
	defer s.shortestMu.Unlock()
	if s.shortest != nil && v.CmpNorm(s.shortest) >= 0 {
		return false
	}
	s.shortest = v
	return true
}

// Close releases the sieve. It fails while a run is in progress.
func (s *Sieve) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrRunning
	}
	s.closed = true
	return nil
}

