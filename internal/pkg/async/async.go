// Package async runs side effects (mail, event publishing) off the request
// path on a fixed pool of workers fed by a bounded queue.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned by Submit when the queue has no free slot.
var ErrQueueFull = errors.New("async: queue full")

// ErrClosed is returned by Submit after Shutdown has started.
var ErrClosed = errors.New("async: dispatcher closed")

// Job is a unit of background work.
type Job func(ctx context.Context) error

type task struct {
	name string
	run  Job
}

// Dispatcher owns the worker pool.
type Dispatcher struct {
	queue  chan task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines reading from a queue of the given
// size. Non-positive values fall back to 1.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:  make(chan task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Submit enqueues job without blocking. Failures of the job itself are
// logged by the worker and never reach the caller.
func (d *Dispatcher) Submit(name string, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- task{name: name, run: job}:
		return nil
	default:
		slog.Warn("async queue full, dropping job", "job", name)
		return ErrQueueFull
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("async job panicked", "job", t.name, "panic", r)
		}
	}()
	if err := t.run(d.ctx); err != nil {
		slog.Error("async job failed", "job", t.name, "error", err)
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. If ctx
// expires first, running jobs see their context cancelled and ctx.Err() is
// returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}
