package dispatch_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rflandau/voidnet/dispatch"
	. "github.com/rflandau/voidnet/internal/testsupport"
)

func TestDrain_FIFO(t *testing.T) {
	e := dispatch.New(nil)
	var got []int
	for i := range 10 {
		e.Enqueue(func() { got = append(got, i) })
	}
	if e.Len() != 10 {
		t.Fatal(ExpectedActual(10, e.Len()))
	}
	if n := e.Drain(); n != 10 {
		t.Fatal(ExpectedActual(10, n))
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if !slices.Equal(got, want) {
		t.Fatal(ExpectedActual(want, got))
	}
	if n := e.Drain(); n != 0 {
		t.Fatal("second drain ran tasks", ExpectedActual(0, n))
	}
}

// Tasks enqueued by a running task are deferred to the next drain.
func TestDrain_Reentrant(t *testing.T) {
	e := dispatch.New(nil)
	var ran []string
	e.Enqueue(func() {
		ran = append(ran, "outer")
		e.Enqueue(func() { ran = append(ran, "inner") })
	})
	if n := e.Drain(); n != 1 {
		t.Fatal(ExpectedActual(1, n))
	}
	if n := e.Drain(); n != 1 {
		t.Fatal(ExpectedActual(1, n))
	}
	if !slices.Equal(ran, []string{"outer", "inner"}) {
		t.Fatal(ExpectedActual([]string{"outer", "inner"}, ran))
	}
}

func TestDrain_Panic(t *testing.T) {
	e := dispatch.New(nil)
	var after bool
	e.Enqueue(func() { panic("boom") })
	e.Enqueue(func() { after = true })
	e.Drain()
	if !after {
		t.Fatal("a panicking task stopped the queue")
	}
}

// Many producers, one consumer: every task runs exactly once and never concurrently with another.
func TestRun_Concurrent(t *testing.T) {
	e := dispatch.New(nil)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var (
		active  int // only touched by tasks
		overlap bool
		count   int
		done    = make(chan struct{})
	)
	const producers, perProducer = 8, 250

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				e.Enqueue(func() {
					active++
					if active > 1 {
						overlap = true
					}
					count++
					if count == producers*perProducer {
						close(done)
					}
					active--
				})
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not every task ran")
	}
	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatal(ExpectedActual(context.Canceled, err))
	}
	if overlap {
		t.Fatal("tasks overlapped")
	}
}

func TestClose(t *testing.T) {
	e := dispatch.New(nil)
	var ran bool
	e.Enqueue(func() { ran = true })
	e.Close()
	if e.Enqueue(func() {}) {
		t.Fatal("closed executor accepted a task")
	}
	if err := e.Run(t.Context()); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("task queued before close did not run")
	}
}

func TestTick(t *testing.T) {
	e := dispatch.New(nil)
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	ran := make(chan struct{})
	e.Enqueue(func() { close(ran) })
	go e.Tick(ctx, 10*time.Millisecond)
	select {
	case <-ran:
	case <-ctx.Done():
		t.Fatal("tick never drained the queue")
	}
}
