package search

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/gpgsweep/gpgsweep/space"
)

// Verifier tests one candidate against the target. Implementations must
// fold every failure (unreachable tool, bad exit, I/O) into false.
type Verifier interface {
	Verify(ctx context.Context, candidate string) bool
}

// VerifierFunc adapts a plain function to Verifier.
type VerifierFunc func(ctx context.Context, candidate string) bool

func (f VerifierFunc) Verify(ctx context.Context, candidate string) bool {
	return f(ctx, candidate)
}

// WorkerContext is the state a worker shares with the rest of the pool.
type WorkerContext struct {
	Verifier       Verifier
	Counter        *Counter
	Stop           *StopSignal
	FlushThreshold int
}

// WorkerResult is what a worker reports for one batch.
type WorkerResult struct {
	Batch    space.Batch
	Found    bool
	Match    space.Candidate
	Attempts int
	// Complete is true when every candidate of the batch was verified.
	Complete bool
}

// Worker verifies batches one at a time.
type Worker struct {
	ID  int
	ctx WorkerContext
	log zerolog.Logger
}

func NewWorker(id int, wc WorkerContext, logger zerolog.Logger) *Worker {
	if wc.FlushThreshold <= 0 {
		wc.FlushThreshold = DefaultFlushThreshold
	}
	return &Worker{
		ID:  id,
		ctx: wc,
		log: logger.With().Int("worker", id).Logger(),
	}
}

// Process tries the candidates of b in order. It stops before the next
// candidate once the stop signal is set or ctx is done, and sets the stop
// signal itself on a match. ctx is handed to the verifier; the stop signal
// never cancels it, so an in-flight verification runs to completion unless
// the whole run is cancelled.
//
// Verifiers fail fast once ctx is done, so a negative seen after
// cancellation is not a real answer: the batch is then reported incomplete
// and the candidate is left for a resumed run.
func (w *Worker) Process(ctx context.Context, b space.Batch) WorkerResult {
	flush := w.ctx.FlushThreshold
	res := WorkerResult{Batch: b}
	local := 0

	abandon := func(reason string) WorkerResult {
		w.log.Trace().Uint64("batch", b.Index).Int("attempts", local).Msg(reason)
		w.ctx.Counter.Add(local % flush)
		res.Attempts = local
		return res
	}

	for _, c := range b.Candidates {
		if w.ctx.Stop.IsSet() {
			return abandon("Stop signal seen, abandoning batch")
		}
		if ctx.Err() != nil {
			return abandon("Run cancelled, abandoning batch")
		}

		// Counted before verifying: the total tracks issued attempts.
		local++
		if local%flush == 0 {
			w.ctx.Counter.Add(flush)
		}

		if w.ctx.Verifier.Verify(ctx, string(c)) {
			w.ctx.Counter.Add(local % flush)
			w.ctx.Stop.Set()
			w.log.Debug().Uint64("batch", b.Index).Int("attempts", local).Msg("Match found")
			res.Found = true
			res.Match = c
			res.Attempts = local
			return res
		}
		if ctx.Err() != nil {
			return abandon("Run cancelled during verification, abandoning batch")
		}
	}

	w.ctx.Counter.Add(local % flush)
	res.Attempts = local
	res.Complete = true
	return res
}
