package workqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsEnqueuedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := New(ctx, 4, 16, nil)

	var n int32
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		q.Enqueue(func(context.Context) {
			atomic.AddInt32(&n, 1)
			wg.Done()
		})
	}
	waitOrTimeout(t, &wg, time.Second)
	assert.EqualValues(t, 10, atomic.LoadInt32(&n))
}

func TestQueueSurvivesPanickingTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := New(ctx, 1, 4, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	q.Enqueue(func(context.Context) { panic("boom") })
	q.Enqueue(func(context.Context) { wg.Done() })
	waitOrTimeout(t, &wg, time.Second)
}

func TestTryEnqueueReportsFullQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	block := make(chan struct{})
	q := New(ctx, 1, 1, nil)

	q.Enqueue(func(context.Context) { <-block })
	// The one worker is now blocked on the first task; the buffer holds
	// at most one more before TryEnqueue must report false.
	q.Enqueue(func(context.Context) {})
	ok := q.TryEnqueue(func(context.Context) {})
	close(block)
	assert.False(t, ok)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks")
	}
}
