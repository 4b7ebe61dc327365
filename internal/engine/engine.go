package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/prunefang/internal/observability"
	"github.com/Sumatoshi-tech/prunefang/internal/oracle"
	"github.com/Sumatoshi-tech/prunefang/internal/queue"
	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
)

// Sentinel errors for engine operation.
var (
	// ErrUnknownTask indicates a task kind with no dispatch handler.
	// A strategy silently skipped would degrade reduction quality
	// undetectably, so dispatch fails loudly instead.
	ErrUnknownTask = errors.New("engine: unknown task kind")

	// ErrOracleFault wraps a failure of the interestingness predicate
	// itself. A crashed check cannot be treated as "not interesting":
	// doing so could silently destroy the triggering case.
	ErrOracleFault = errors.New("engine: interestingness oracle fault")
)

// Default worker-pool tuning.
const (
	// DefaultBackoffMin is the initial idle backoff between empty pops.
	DefaultBackoffMin = 500 * time.Microsecond

	// DefaultBackoffMax bounds the idle backoff growth.
	DefaultBackoffMax = 20 * time.Millisecond
)

// excerptLimit bounds the candidate text quoted in oracle fault diagnostics.
const excerptLimit = 256

// Options configures a reduction run.
type Options struct {
	// Jobs is the number of worker goroutines. Values below 1 mean 1.
	Jobs int

	// BackoffMin and BackoffMax bound the sleep between unsuccessful
	// pops in the idle protocol.
	BackoffMin time.Duration
	BackoffMax time.Duration

	// Logger receives per-task debug output. Defaults to slog.Default.
	Logger *slog.Logger

	// Metrics receives engine instrumentation. Defaults to noop.
	Metrics *observability.EngineMetrics

	// OnCommit, when set, is called after every committed replacement
	// with the newly installed snapshot. Called concurrently from
	// worker goroutines; implementations must be safe for that.
	OnCommit func(tree *syntree.Tree)
}

// Stats summarizes a completed reduction run.
type Stats struct {
	InitialWeight int
	FinalWeight   int
	OracleCalls   int64
	Commits       int64
	Conflicts     int64
	StaleDrops    int64
	Duration      time.Duration
}

// Engine owns the shared state of one reduction run.
type Engine struct {
	queue   *queue.Queue
	target  *Target
	oracle  oracle.Oracle
	opts    Options
	log     *slog.Logger
	metrics *observability.EngineMetrics

	live atomic.Int64
	idle atomic.Int64
	done atomic.Bool

	fatalMu sync.Mutex
	fatal   error

	oracleCalls atomic.Int64
	commits     atomic.Int64
	conflicts   atomic.Int64
	staleDrops  atomic.Int64
}

// New creates an engine over the initial tree and oracle.
func New(tree *syntree.Tree, orc oracle.Oracle, opts Options) *Engine {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}

	if opts.BackoffMin <= 0 {
		opts.BackoffMin = DefaultBackoffMin
	}

	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = DefaultBackoffMax
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Metrics == nil {
		opts.Metrics = observability.NewNoopEngineMetrics()
	}

	return &Engine{
		queue:   queue.New(),
		target:  NewTarget(tree),
		oracle:  orc,
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Reduce runs the engine to quiescence and returns the final tree. The
// initial tree is assumed interesting (precondition, not re-verified).
// Oracle faults abort the run; the partial result is not returned, since
// partial results under an unreliable oracle are untrustworthy.
func Reduce(ctx context.Context, tree *syntree.Tree, orc oracle.Oracle, opts Options) (*syntree.Tree, Stats, error) {
	e := New(tree, orc, opts)

	start := time.Now()
	root := tree.Root()
	e.enqueue(queue.Task{Kind: queue.KindExplore, Node: root.ID()}, root.Weight())

	var wg sync.WaitGroup

	e.live.Add(int64(e.opts.Jobs))

	for i := 0; i < e.opts.Jobs; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			e.worker(ctx)
		}()
	}

	wg.Wait()

	final := e.target.Snapshot()
	stats := Stats{
		InitialWeight: tree.Weight(),
		FinalWeight:   final.Weight(),
		OracleCalls:   e.oracleCalls.Load(),
		Commits:       e.commits.Load(),
		Conflicts:     e.conflicts.Load(),
		StaleDrops:    e.staleDrops.Load(),
		Duration:      time.Since(start),
	}

	e.fatalMu.Lock()
	err := e.fatal
	e.fatalMu.Unlock()

	if err != nil {
		return nil, stats, err
	}

	return final, stats, nil
}

// enqueue pushes a task at the given priority.
func (e *Engine) enqueue(task queue.Task, priority int) {
	e.queue.Push(task, priority)
}

// fail records the first fatal error and initiates shutdown.
func (e *Engine) fail(err error) {
	e.fatalMu.Lock()

	if e.fatal == nil {
		e.fatal = err
	}

	e.fatalMu.Unlock()
	e.done.Store(true)
}

// testCandidate renders a candidate and consults the oracle. It is never
// called while holding the queue or target; the oracle is the only slow
// operation in the engine and must not serialize the workers.
func (e *Engine) testCandidate(ctx context.Context, cand *syntree.Tree) (bool, error) {
	text := cand.Render()

	start := time.Now()
	interesting, err := e.oracle.Test(ctx, text)
	elapsed := time.Since(start)

	e.oracleCalls.Add(1)
	e.metrics.RecordOracleCall(ctx, interesting, elapsed)

	if err != nil {
		return false, fmt.Errorf("%w: %v (candidate: %q)", ErrOracleFault, err, excerpt(text))
	}

	return interesting, nil
}

// recordCommit accounts a successful replacement and notifies the hook.
func (e *Engine) recordCommit(ctx context.Context, cand *syntree.Tree) {
	e.commits.Add(1)
	e.metrics.RecordCommit(ctx, cand.Weight())
	e.log.Debug("committed reduction", "version", cand.Version(), "weight", cand.Weight())

	if e.opts.OnCommit != nil {
		e.opts.OnCommit(cand)
	}
}

// recordConflict accounts a lost replacement race.
func (e *Engine) recordConflict(ctx context.Context) {
	e.conflicts.Add(1)
	e.metrics.RecordConflict(ctx)
}

// recordStaleDrop accounts a task dropped on a stale node id. Stale ids are
// a routine race outcome, not an error.
func (e *Engine) recordStaleDrop(ctx context.Context) {
	e.staleDrops.Add(1)
	e.metrics.RecordStaleDrop(ctx)
}

// excerpt truncates candidate text for diagnostics.
func excerpt(text []byte) string {
	if len(text) <= excerptLimit {
		return string(text)
	}

	return string(text[:excerptLimit]) + "..."
}
