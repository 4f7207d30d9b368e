// Package dispatch provides the single ordered queue that every decoded message is funneled into.
//
// Network goroutines never run handlers themselves; they Enqueue a closure.
// The embedding application drains the Executor from exactly one place, typically once per simulation tick,
// so handlers never run concurrently with one another.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rflandau/voidnet"
	"github.com/rs/zerolog"
)

// An Executor is a multi-producer, single-consumer FIFO of tasks.
// The zero value is not usable; call New.
type Executor struct {
	log *zerolog.Logger

	mu     sync.Mutex
	queue  []func()
	spare  []func() // recycled backing array for the next swap
	closed bool

	drainMu sync.Mutex    // only one drain at a time
	signal  chan struct{} // buffered(1); poked on every enqueue
}

// New returns an empty executor.
// If l is nil, handler panics are logged nowhere.
func New(l *zerolog.Logger) *Executor {
	if l == nil {
		nop := zerolog.Nop()
		l = &nop
	}
	return &Executor{log: l, signal: make(chan struct{}, 1)}
}

// Enqueue schedules f to run on the next drain.
// Safe to call from any goroutine, including from inside a running task.
// Returns false (and drops f) if the executor has been closed.
func (e *Executor) Enqueue(f func()) bool {
	if f == nil {
		return false
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.queue = append(e.queue, f)
	e.mu.Unlock()

	select {
	case e.signal <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of tasks waiting for the next drain.
func (e *Executor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Drain runs, in order, every task queued at the moment of the call.
// Tasks enqueued while draining wait for the next drain.
// A panicking task is logged and does not stop the tasks behind it.
// Returns the number of tasks run.
func (e *Executor) Drain() int {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	e.mu.Lock()
	batch := e.queue
	e.queue = e.spare[:0]
	e.spare = nil
	e.mu.Unlock()

	for i, f := range batch {
		e.run(f)
		batch[i] = nil
	}

	e.mu.Lock()
	if e.spare == nil {
		e.spare = batch[:0]
	}
	e.mu.Unlock()
	return len(batch)
}

func (e *Executor) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	f()
}

// Run drains the executor whenever work arrives until ctx is cancelled or the executor is closed.
// Run and Tick are alternatives to calling Drain from an application loop; do not use more than one.
func (e *Executor) Run(ctx context.Context) error {
	if ctx == nil {
		return voidnet.ErrNilCtx
	}
	for {
		select {
		case <-ctx.Done():
			e.Drain()
			return ctx.Err()
		case <-e.signal:
			e.Drain()
			if e.isClosed() && e.Len() == 0 {
				return nil
			}
		}
	}
}

// Tick drains the executor once every interval until ctx is cancelled or the executor is closed.
func (e *Executor) Tick(ctx context.Context, interval time.Duration) error {
	if ctx == nil {
		return voidnet.ErrNilCtx
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Drain()
			return ctx.Err()
		case <-t.C:
			e.Drain()
			if e.isClosed() && e.Len() == 0 {
				return nil
			}
		}
	}
}

// Close stops the executor from accepting new tasks.
// Tasks already queued still run on the next drain.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

func (e *Executor) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
