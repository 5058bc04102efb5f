// Package workqueue implements the bounded pool of async tasks spec.md
// §4.3/§5 calls for: the webhook handler enqueues a reconcile/dispatch
// task and returns 202 immediately, a fixed number of workers drain the
// queue, and a failed task is logged, never surfaced to the HTTP caller.
//
// Grounded on hook.Server.demuxEvent's "go s.handleXEvent(...)"
// one-goroutine-per-event pattern, generalized into a bounded pool per
// spec.md §5 instead of unbounded goroutines — a deliberate
// simplification over the teacher, recorded in DESIGN.md.
package workqueue

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Task is one unit of enqueued work.
type Task func(ctx context.Context)

// Queue is a bounded channel of Tasks drained by a fixed worker pool.
type Queue struct {
	tasks chan Task
	log   *logrus.Entry
	wg    sync.WaitGroup
}

// New starts workers workers pulling off a channel buffered to depth.
// Both must be > 0.
func New(ctx context.Context, workers, depth int, log *logrus.Entry) *Queue {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	q := &Queue{tasks: make(chan Task, depth), log: log}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	return q
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.run(ctx, task)
		}
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.WithField("panic", r).Error("workqueue task panicked")
		}
	}()
	task(ctx)
}

// Enqueue submits task without blocking beyond the channel's buffer; a
// full queue blocks the caller, which in practice is the webhook
// handler's goroutine, not the original HTTP client (spec.md's 202
// response has already been decided by the time Enqueue is reached only
// if TryEnqueue is used instead — Enqueue itself is the simple blocking
// form used once capacity planning makes blocking acceptable).
func (q *Queue) Enqueue(task Task) {
	q.tasks <- task
}

// TryEnqueue submits task without blocking; it reports false if the
// queue is full, so the caller can still answer the HTTP request and
// log a drop instead of stalling the request goroutine.
func (q *Queue) TryEnqueue(task Task) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting new tasks and waits for in-flight ones to drain.
func (q *Queue) Close() {
	close(q.tasks)
	q.wg.Wait()
}
