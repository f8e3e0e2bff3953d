// Package dispatch implements the Dispatch Loop (§4.4): it holds the
// active-request counter, pops admitted requests off the queue in priority
// order, and drives each one through the executor. A completion never
// drives the next dispatch directly on its own goroutine; it posts a
// signal that a single dedicated loop goroutine picks up, so a burst of
// fast completions cannot grow an unbounded call stack (design-notes
// guidance: no recursion on the completion thread).
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"glowhost/internal/exec"
	"glowhost/internal/hosterr"
	"glowhost/internal/queue"
	"glowhost/internal/registry"
	"glowhost/pkg/types"
)

// Dispatcher wires the Network Registry's refcounted handles, the bounded
// priority queue, and the Executor's worker pool into the admit -> queue ->
// run -> release pipeline described in §4.4.
type Dispatcher struct {
	registry *registry.Registry
	queue    *queue.Queue
	executor *exec.Executor

	maxActive int64
	active    atomic.Int64
	total     atomic.Int64
	failed    atomic.Int64

	mu      sync.Mutex
	pending map[types.RequestID]registry.Handle

	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}

	logger zerolog.Logger
}

// New returns a Dispatcher and starts its background dispatch-loop
// goroutine. Callers must call Stop when the Dispatcher is no longer
// needed, typically as part of clear_host / process shutdown.
func New(reg *registry.Registry, q *queue.Queue, executor *exec.Executor, maxActiveRequests int) *Dispatcher {
	if maxActiveRequests < 1 {
		maxActiveRequests = 1
	}
	d := &Dispatcher{
		registry:  reg,
		queue:     q,
		executor:  executor,
		maxActive: int64(maxActiveRequests),
		pending:   make(map[types.RequestID]registry.Handle),
		trigger:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		logger:    log.With().Str("component", "dispatch").Logger(),
	}
	go d.loop()
	return d
}

// Stop ends the dispatch-loop goroutine, but not before it has drained
// every request already in the queue: it keeps dispatching and waiting on
// completions until both the queue and the active-request count reach
// zero, then returns. No accepted request is ever abandoned mid-queue —
// every Submit still gets exactly one callback invocation and has its
// registry refcount released.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

// Submit acquires a refcount on req.NetworkName, enqueues req, and wakes
// the dispatch loop. The refcount is acquired here, at admission time, not
// at dispatch time, so a concurrent remove_network sees the network as busy
// for as long as this request is queued or running (§4.4, §4.6).
//
// On any failure, Submit releases whatever it had already acquired before
// returning, so a refused request never leaks a refcount.
func (d *Dispatcher) Submit(req *types.InferRequest) error {
	handle, err := d.registry.Acquire(req.NetworkName)
	if err != nil {
		d.failed.Add(1)
		return err
	}
	if err := d.queue.TryPush(req); err != nil {
		d.registry.Release(req.NetworkName)
		d.failed.Add(1)
		return err
	}
	d.mu.Lock()
	d.pending[req.RequestID] = handle
	d.mu.Unlock()
	d.total.Add(1)
	d.kick()
	return nil
}

// kick wakes the dispatch loop without blocking. The channel is buffered at
// one: if a wake-up is already pending, this is a no-op, since the loop
// drains everything it can on each wake-up anyway.
func (d *Dispatcher) kick() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.trigger:
			for d.dispatchNext() {
			}
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain keeps admitting queued requests and waiting for in-flight runs to
// complete until the queue is empty and no run is active, so a Stop called
// with work still queued never abandons it: every completion's d.kick()
// wakes this loop to try dispatching whatever Stop's initial pass couldn't
// yet admit under the active-request budget.
func (d *Dispatcher) drain() {
	for {
		for d.dispatchNext() {
		}
		if d.queue.Len() == 0 && d.active.Load() == 0 {
			return
		}
		<-d.trigger
	}
}

// dispatchNext admits one slot of active-request budget, pops the
// highest-priority queued request, and runs it. It returns false (and
// releases the slot it provisionally took) if the queue was empty or the
// active-request budget was already exhausted, so the loop above knows to
// stop spinning until the next kick.
func (d *Dispatcher) dispatchNext() bool {
	for {
		cur := d.active.Load()
		if cur >= d.maxActive {
			return false
		}
		if d.active.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	req, ok := d.queue.Pop()
	if !ok {
		d.active.Add(-1)
		return false
	}

	d.mu.Lock()
	handle, ok := d.pending[req.RequestID]
	delete(d.pending, req.RequestID)
	d.mu.Unlock()
	if !ok {
		// Submitted and popped without ever being recorded: a bookkeeping
		// impossibility under Submit's ordering, but fail closed rather
		// than run against a nil DAG.
		d.active.Add(-1)
		d.registry.Release(req.NetworkName)
		d.failed.Add(1)
		if req.Callback != nil {
			req.Callback(nil, hosterr.Runtime("dispatch: no acquired handle for request %d on %q", req.RequestID, req.NetworkName))
		}
		return true
	}

	d.executor.Run(context.Background(), handle.DAG, req.Context, req.RequestID, func(ctx *types.ExecContext, err error) {
		if err != nil {
			d.failed.Add(1)
			d.logger.Warn().Str("network", handle.Name).Err(err).Msg("run failed")
		}
		if req.Callback != nil {
			req.Callback(ctx, err)
		}
		// The refcount, and the active-request slot it gates, are only
		// released once the caller has been handed its result: a
		// concurrent remove_network must see this network as busy for as
		// long as its caller is still inside the completion callback.
		d.registry.Release(handle.Name)
		d.active.Add(-1)
		d.kick()
	})
	return true
}

// ActiveRequestCount returns the current number of in-flight executor runs.
func (d *Dispatcher) ActiveRequestCount() int64 { return d.active.Load() }

// TotalRequestCount returns the lifetime count of accepted requests.
func (d *Dispatcher) TotalRequestCount() int64 { return d.total.Load() }

// FailedRequestCount returns the lifetime count of requests whose callback
// carried a non-nil error, including those refused at admission.
func (d *Dispatcher) FailedRequestCount() int64 { return d.failed.Load() }

// QueueSize returns the number of requests currently queued, not yet
// dispatched.
func (d *Dispatcher) QueueSize() int { return d.queue.Len() }
