// Package queue implements the Ordered Consumer Pipeline's OrderedQueue
// (§4.5): a bounded-concurrency FIFO whose tasks run out of order but
// complete in enqueue order, modelled on the reorder-buffer shape the
// teacher's eth/downloader queue uses to reassemble out-of-order header
// and body fetches into an in-order stream.
package queue

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ethereum/go-ethereum/metrics"

	"github.com/telosevm/shipcore/shiperr"
)

var metricQueueDepth = metrics.NewRegisteredGauge("shipcore/queue/depth", nil)

// Task is the unit of work Enqueue accepts: ctx is the context passed to
// Enqueue. The queue never cancels it; Clear only drops the results of
// tasks still running.
type Task func(ctx context.Context) (any, error)

// OnComplete is invoked, strictly in enqueue order, for every task that
// completes successfully. The queue never calls it concurrently.
type OnComplete func(value any)

// OnFailure is invoked once, the first time a task in the current
// generation reports an error. The queue is paused and cleared before
// this returns.
type OnFailure func(err error)

type result struct {
	generation uint64
	value      any
	err        error
}

// OrderedQueue bounds concurrency at C via a weighted semaphore, while a
// sequence-indexed map of pending results lets completions land in any
// order and still drain to OnComplete in enqueue order. A single task
// failure pauses the queue and clears all queued/in-flight state; the
// owner must call Start to resume accepting work.
type OrderedQueue struct {
	sem *semaphore.Weighted

	mu         sync.Mutex
	paused     bool
	generation uint64
	nextSeq    uint64
	nextEmit   uint64
	pending    map[uint64]result

	// emitMu serializes complete()'s drain-and-callback section so that
	// draining a contiguous run of results and invoking onComplete/
	// onFailure for them is one atomic step from another completing
	// goroutine's point of view. Without it, two goroutines can each drain
	// a disjoint contiguous run under mu, release mu, and then race to
	// invoke their callbacks, delivering them out of enqueue order.
	emitMu sync.Mutex

	onComplete OnComplete
	onFailure  OnFailure
}

// New builds a queue with concurrency bound C (config.concurrencyAmount,
// §11 perf.concurrencyAmount).
func New(concurrency int64, onComplete OnComplete, onFailure OnFailure) *OrderedQueue {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &OrderedQueue{
		sem:        semaphore.NewWeighted(concurrency),
		pending:    make(map[uint64]result),
		onComplete: onComplete,
		onFailure:  onFailure,
	}
}

// Enqueue schedules task for execution on its own goroutine, bounded by the
// queue's concurrency semaphore. It returns ErrQueuePaused without
// scheduling anything if the queue is currently paused.
func (q *OrderedQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	if q.paused {
		q.mu.Unlock()
		return shiperr.ErrQueuePaused
	}
	seq := q.nextSeq
	q.nextSeq++
	generation := q.generation
	q.mu.Unlock()

	metricQueueDepth.Inc(1)
	go q.run(ctx, generation, seq, task)
	return nil
}

func (q *OrderedQueue) run(ctx context.Context, generation, seq uint64, task Task) {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		q.complete(generation, seq, nil, fmt.Errorf("queue: acquire slot: %w", err))
		return
	}
	defer q.sem.Release(1)

	value, err := task(ctx)
	metricQueueDepth.Dec(1)
	q.complete(generation, seq, value, err)
}

// complete records one task's outcome and drains every contiguous,
// already-ready result starting at nextEmit, in order. A failure halts the
// drain at that point and pauses/clears the queue before OnFailure runs;
// results from a generation that has since been cleared are discarded.
//
// emitMu is held for the whole store-drain-invoke sequence: two completing
// goroutines must not interleave their onComplete calls, since each only
// drains the contiguous run starting at the *shared* nextEmit cursor, not
// its own single result. Holding mu alone across the callback loop would
// serialize the drains but not the subsequent invocations once mu was
// released, which is exactly the gap that let callbacks run out of order.
func (q *OrderedQueue) complete(generation, seq uint64, value any, err error) {
	q.emitMu.Lock()
	defer q.emitMu.Unlock()

	q.mu.Lock()
	if generation != q.generation {
		q.mu.Unlock()
		return
	}
	q.pending[seq] = result{generation: generation, value: value, err: err}

	var ready []result
	for {
		r, ok := q.pending[q.nextEmit]
		if !ok {
			break
		}
		delete(q.pending, q.nextEmit)
		q.nextEmit++
		ready = append(ready, r)
		if r.err != nil {
			break
		}
	}
	q.mu.Unlock()

	for _, r := range ready {
		if r.err != nil {
			q.Pause()
			q.Clear()
			if q.onFailure != nil {
				q.onFailure(r.err)
			}
			return
		}
		if q.onComplete != nil {
			q.onComplete(r.value)
		}
	}
}

// Pause stops the queue from accepting new work. In-flight tasks still
// run to completion but their results are dropped once Clear bumps the
// generation.
func (q *OrderedQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Clear discards all pending (not-yet-emitted) results and advances the
// queue to a new generation, so that in-flight tasks launched before the
// clear report into a dead generation and are silently dropped on
// completion.
func (q *OrderedQueue) Clear() {
	q.mu.Lock()
	q.generation++
	q.nextSeq = 0
	q.nextEmit = 0
	q.pending = make(map[uint64]result)
	q.mu.Unlock()
}

// Start resumes accepting work after a Pause (§4.5 startProcessing()).
func (q *OrderedQueue) Start() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
}

// Paused reports whether the queue is currently refusing new Enqueue
// calls.
func (q *OrderedQueue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}
