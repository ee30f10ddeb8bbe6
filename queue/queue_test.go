package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestOrderedQueueCompletionOrderMatchesEnqueueOrder(t *testing.T) {
	var mu sync.Mutex
	var got []any

	q := New(4, func(v any) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	}, func(err error) {
		t.Fatalf("unexpected failure: %v", err)
	})

	ctx := context.Background()
	delays := []time.Duration{30 * time.Millisecond, 5 * time.Millisecond, 20 * time.Millisecond, 0}
	for i, d := range delays {
		i, d := i, d
		if err := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
			time.Sleep(d)
			return i, nil
		}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == len(delays) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for completions, got %v", got)
		case <-time.After(time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v.(int) != i {
			t.Fatalf("out-of-order completion: got %v, want sequential 0..%d", got, len(delays)-1)
		}
	}
}

// TestOrderedQueueCallbacksDoNotInterleave guards against a race where a
// slow onComplete callback for an earlier sequence number could still be
// running when a later, already-ready sequence number's completion grabbed
// mu (already released by the first drain), drained itself, and invoked its
// own callback first. Both tasks finish at nearly the same time so their
// goroutines race into complete(); the first sequence's callback sleeps to
// widen the window a slow callback leaves open.
func TestOrderedQueueCallbacksDoNotInterleave(t *testing.T) {
	var mu sync.Mutex
	var got []any

	q := New(4, func(v any) {
		if v.(int) == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	}, func(err error) {
		t.Fatalf("unexpected failure: %v", err)
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		i := i
		if err := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
			return i, nil
		}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for completions, got %v", got)
		case <-time.After(time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0].(int) != 0 || got[1].(int) != 1 {
		t.Fatalf("callbacks interleaved out of enqueue order: got %v", got)
	}
}

func TestOrderedQueueFailurePausesAndClears(t *testing.T) {
	var failed error
	var completedAfterFailure bool

	q := New(2, func(v any) {
		completedAfterFailure = true
	}, func(err error) {
		failed = err
	})

	ctx := context.Background()
	boom := errors.New("boom")
	done := make(chan struct{})
	if err := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return nil, boom
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	go func() {
		for i := 0; i < 100; i++ {
			if q.Paused() {
				close(done)
				return
			}
			time.Sleep(time.Millisecond)
		}
		close(done)
	}()
	<-done

	if !q.Paused() {
		t.Fatalf("expected queue to be paused after failure")
	}
	if failed != boom {
		t.Fatalf("expected onFailure to receive the task error, got %v", failed)
	}
	if completedAfterFailure {
		t.Fatalf("onComplete should not have run for the failing task")
	}

	if err := q.Enqueue(ctx, func(ctx context.Context) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected Enqueue to be refused while paused")
	}

	q.Start()
	if q.Paused() {
		t.Fatalf("expected queue to resume after Start")
	}
	if err := q.Enqueue(ctx, func(ctx context.Context) (any, error) { return "ok", nil }); err != nil {
		t.Fatalf("enqueue after Start failed: %v", err)
	}
}

func TestOrderedQueueStaleGenerationResultsAreDropped(t *testing.T) {
	release := make(chan struct{})
	var onCompleteCalls int
	var mu sync.Mutex

	q := New(1, func(v any) {
		mu.Lock()
		onCompleteCalls++
		mu.Unlock()
	}, func(err error) {})

	ctx := context.Background()
	started := make(chan struct{})
	if err := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "late", nil
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	<-started

	q.Pause()
	q.Clear()
	q.Start()

	close(release)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if onCompleteCalls != 0 {
		t.Fatalf("expected stale task's completion to be dropped, got %d calls", onCompleteCalls)
	}
}
