// Package dispatch provides a serial FIFO work queue. Tasks run one at a
// time on a dedicated goroutine in the order they were submitted, so
// callers can hand off work that must not run under their own locks.
package dispatch

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-syncvoice/internal/log"
)

// ErrClosed is returned when submitting to a closed queue.
var ErrClosed = errors.New("dispatch: queue closed")

// Queue runs submitted tasks serially.
type Queue struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool

	done chan struct{}
}

// New starts a queue. A nil logger uses the global logger.
func New(name string, logger *slog.Logger) *Queue {
	q := &Queue{
		name:   name,
		logger: log.Or(logger).With("queue", name),
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Dispatch enqueues fn. It never blocks on the task itself.
func (q *Queue) Dispatch(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
	return nil
}

// Drain blocks until every task submitted before the call has run.
func (q *Queue) Drain() error {
	done := make(chan struct{})
	if err := q.Dispatch(func() { close(done) }); err != nil {
		return err
	}
	<-done
	return nil
}

// Close stops accepting tasks, runs what is queued and waits for the
// worker to exit. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Signal()
	}
	q.mu.Unlock()
	<-q.done
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.call(fn)
	}
}

func (q *Queue) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "panic", r)
		}
	}()
	fn()
}
