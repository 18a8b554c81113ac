package search

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultFlushThreshold is how many attempts a worker accumulates locally
// before publishing them to the shared Counter.
const DefaultFlushThreshold = 128

// Counter is the global attempt total shared by all workers. Workers add in
// bulk, so a snapshot undercounts in-flight attempts by less than the flush
// threshold per active worker. Once every worker has drained it is exact.
type Counter struct {
	c *xsync.Counter
}

func NewCounter() *Counter {
	return &Counter{c: xsync.NewCounter()}
}

// Add publishes n local attempts. Non-positive values are ignored so the
// total never decreases.
func (c *Counter) Add(n int) {
	if n <= 0 {
		return
	}
	c.c.Add(int64(n))
}

// Snapshot reads the current total without blocking writers. Every stripe
// only grows, so successive snapshots never decrease.
func (c *Counter) Snapshot() uint64 {
	return uint64(c.c.Value())
}

// StopSignal is a one-way cancellation flag. Once set it stays set for the
// rest of the run.
type StopSignal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Set raises the signal. Repeated calls are no-ops.
func (s *StopSignal) Set() {
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
	})
}

func (s *StopSignal) IsSet() bool {
	return s.set.Load()
}

// Done is closed when the signal is first set.
func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}
