package search

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gpgsweep/gpgsweep/space"
)

// State is the phase of a search run.
type State int

const (
	Running State = iota
	Found
	Exhausted
	Interrupted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	DefaultChunkSize      = 64
	DefaultReportInterval = 5 * time.Second
)

var ErrAlreadyRun = errors.New("coordinator has already run")

// Checkpointer persists progress. offset is the position below which every
// candidate has been verified; attempts is the counter snapshot.
type Checkpointer interface {
	Checkpoint(offset, attempts uint64) error
}

// Result is the outcome of a run.
type Result struct {
	State    State
	Match    space.Candidate
	Attempts uint64
	Elapsed  time.Duration
	// Offset is the resume point: every candidate below it was verified.
	Offset uint64
}

// Coordinator owns the worker pool for one search. It feeds batches in
// generator order and consumes results in completion order.
type Coordinator struct {
	space    space.Space
	verifier Verifier

	jobs       int
	chunk      int
	flush      int
	interval   time.Duration
	resume     uint64
	reporter   Reporter
	checkpoint Checkpointer
	log        zerolog.Logger

	counter *Counter
	stop    *StopSignal
	ran     atomic.Bool

	// Only touched by the goroutine inside Run.
	remaining  *big.Int
	start      time.Time
	lastReport time.Time
	lastCount  uint64
	mark       watermark
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithJobs sets the pool size. Zero or negative picks runtime.NumCPU().
func WithJobs(n int) Option {
	return func(c *Coordinator) {
		if n <= 0 {
			n = runtime.NumCPU()
		}
		if n < 1 {
			n = 1
		}
		c.jobs = n
	}
}

func WithChunkSize(n int) Option {
	return func(c *Coordinator) {
		c.chunk = n
	}
}

func WithFlushThreshold(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.flush = n
		}
	}
}

// WithReportInterval sets the time between throughput reports. Zero keeps
// only the final report.
func WithReportInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.interval = d
	}
}

func WithReporter(r Reporter) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.reporter = r
		}
	}
}

func WithCheckpointer(cp Checkpointer) Option {
	return func(c *Coordinator) {
		c.checkpoint = cp
	}
}

// WithResumeOffset starts the search at the given candidate position.
func WithResumeOffset(offset uint64) Option {
	return func(c *Coordinator) {
		c.resume = offset
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

func New(sp space.Space, v Verifier, opts ...Option) (*Coordinator, error) {
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.New("no verifier configured")
	}
	c := &Coordinator{
		space:    sp,
		verifier: v,
		jobs:     runtime.NumCPU(),
		chunk:    DefaultChunkSize,
		flush:    DefaultFlushThreshold,
		interval: DefaultReportInterval,
		reporter: &SilentReporter{},
		log:      log.Logger,
		counter:  NewCounter(),
		stop:     NewStopSignal(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jobs < 1 {
		c.jobs = 1
	}
	if c.chunk < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", c.chunk)
	}
	c.remaining = sp.Size()
	c.remaining.Sub(c.remaining, new(big.Int).SetUint64(c.resume))
	if c.remaining.Sign() < 0 {
		c.remaining.SetInt64(0)
	}
	return c, nil
}

func (c *Coordinator) Jobs() int {
	return c.jobs
}

func (c *Coordinator) Counter() *Counter {
	return c.counter
}

func (c *Coordinator) Stop() *StopSignal {
	return c.stop
}

// Run searches until a worker finds a match, the space is exhausted, or ctx
// is cancelled. It returns only after every worker has exited.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	if !c.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	gen := space.NewGenerator(c.space)
	gen.Skip(c.resume)
	batcher, err := space.NewBatcher(gen, c.chunk)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Int("jobs", c.jobs).
		Int("chunk", c.chunk).
		Int("flush", c.flush).
		Uint64("resume", c.resume).
		Str("space", c.space.String()).
		Msg("Starting search")

	work := make(chan space.Batch)
	results := make(chan WorkerResult, c.jobs)
	wc := WorkerContext{
		Verifier:       c.verifier,
		Counter:        c.counter,
		Stop:           c.stop,
		FlushThreshold: c.flush,
	}

	var pool errgroup.Group
	for i := 0; i < c.jobs; i++ {
		w := NewWorker(i, wc, c.log)
		pool.Go(func() error {
			for b := range work {
				results <- w.Process(ctx, b)
			}
			return nil
		})
	}

	c.start = time.Now()
	c.lastReport = c.start
	c.lastCount = 0
	c.mark = newWatermark(c.resume)

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	res := &Result{State: Running}
	next, more := batcher.Next()
	inflight := 0
	for res.State == Running {
		if ctx.Err() != nil {
			c.stop.Set()
			res.State = Interrupted
			break
		}
		if !more && inflight == 0 {
			res.State = Exhausted
			break
		}

		var dispatch chan<- space.Batch
		if more && !c.stop.IsSet() {
			dispatch = work
		}

		select {
		case dispatch <- next:
			inflight++
			next, more = batcher.Next()
		case r := <-results:
			inflight--
			c.absorb(r, res)
			c.report(time.Now(), false)
		case now := <-tick:
			c.report(now, false)
		case <-ctx.Done():
			c.stop.Set()
			res.State = Interrupted
		}
	}

	c.report(time.Now(), true)

	// In-flight batches finish or abort on their own; wait for them before
	// tearing the pool down.
	close(work)
	go func() {
		_ = pool.Wait()
		close(results)
	}()
	for r := range results {
		c.absorb(r, res)
	}

	res.Attempts = c.counter.Snapshot()
	res.Elapsed = time.Since(c.start)
	res.Offset = c.mark.offset
	c.saveCheckpoint(res.Attempts)

	c.log.Debug().
		Str("state", res.State.String()).
		Uint64("attempts", res.Attempts).
		Uint64("offset", res.Offset).
		Dur("elapsed", res.Elapsed).
		Msg("Search finished")
	return res, nil
}

// absorb folds one worker result into the run state.
func (c *Coordinator) absorb(r WorkerResult, res *Result) {
	if r.Complete {
		c.mark.complete(r.Batch)
	}
	if !r.Found {
		return
	}
	if res.State == Found {
		c.log.Debug().Str("match", string(r.Match)).Msg("Ignoring additional match")
		return
	}
	res.State = Found
	res.Match = r.Match
	c.stop.Set()
}

// report emits a throughput line when the interval has elapsed, or always
// when final is set.
func (c *Coordinator) report(now time.Time, final bool) {
	elapsed := now.Sub(c.lastReport)
	if !final && (c.interval <= 0 || elapsed < c.interval) {
		return
	}
	total := c.counter.Snapshot()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(total-c.lastCount) / elapsed.Seconds()
	}
	c.reporter.Printf("%s", FormatReport(Report{
		Total:   total,
		Rate:    rate,
		Elapsed: now.Sub(c.start),
		Final:   final,
	}, c.remaining))
	c.lastReport = now
	c.lastCount = total
	if !final {
		c.saveCheckpoint(total)
	}
}

func (c *Coordinator) saveCheckpoint(attempts uint64) {
	if c.checkpoint == nil {
		return
	}
	if err := c.checkpoint.Checkpoint(c.mark.offset, attempts); err != nil {
		c.log.Warn().Err(err).Msg("Failed to write checkpoint")
	}
}

// watermark tracks the longest prefix of batches known to be complete.
type watermark struct {
	next    uint64            // first batch index not yet known complete
	offset  uint64            // candidate position where that batch starts
	pending map[uint64]uint64 // completed batches past next: index -> end
}

func newWatermark(offset uint64) watermark {
	return watermark{offset: offset, pending: make(map[uint64]uint64)}
}

func (w *watermark) complete(b space.Batch) {
	w.pending[b.Index] = b.End()
	for {
		end, ok := w.pending[w.next]
		if !ok {
			return
		}
		delete(w.pending, w.next)
		w.next++
		w.offset = end
	}
}
