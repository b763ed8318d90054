// Package loop provides the single logical thread the panel runs on.
//
// Every state mutation and every materialize happens inside a task run by
// Loop.Run, one at a time, in posting order. Timer callbacks scheduled
// through AfterFunc are posted back onto the loop instead of running on
// the timer goroutine, so no component needs its own locking.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/livecode/internal/throttle"
)

// ErrStopped is returned when posting to a loop that has stopped.
var ErrStopped = errors.New("loop stopped")

// Task is a unit of work run on the loop. A non-nil error stops the loop
// and is returned from Run.
type Task func() error

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// Loop runs posted tasks sequentially.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []Task
	err     error
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// New creates a loop. Tasks may be posted before Run starts.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.New(slog.DiscardHandler),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues task to run on the loop. It never blocks and is safe to
// call from any goroutine, including from inside a task.
func (l *Loop) Post(task Task) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call posts task and waits for its result. It must not be called from a
// task running on the same loop.
func (l *Loop) Call(ctx context.Context, task Task) error {
	result := make(chan error, 1)
	err := l.Post(func() error {
		result <- task()
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes tasks until ctx is cancelled, Stop or Fail is called, or a
// task returns an error. It returns the error that stopped the loop, or
// nil for a clean stop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.stop(nil)
			return ctx.Err()
		case <-l.done:
			return l.Err()
		case <-l.wake:
		}

		for {
			task, ok := l.next()
			if !ok {
				break
			}
			if err := task(); err != nil {
				l.logger.Error("loop task failed", "error", err)
				l.stop(err)
				return err
			}
		}
	}
}

func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// Fail stops the loop with err. Run returns err.
func (l *Loop) Fail(err error) {
	if err != nil {
		l.logger.Error("loop failed", "error", err)
	}
	l.stop(err)
}

// Stop stops the loop cleanly. Queued tasks are discarded.
func (l *Loop) Stop() {
	l.stop(nil)
}

func (l *Loop) stop(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.err = err
	l.queue = nil
	close(l.done)
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Err returns the error the loop stopped with.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Now returns the current time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc runs fn on the loop after d. Callbacks that come due after the
// loop stops are dropped.
func (l *Loop) AfterFunc(d time.Duration, fn func()) throttle.Timer {
	return time.AfterFunc(d, func() {
		_ = l.Post(func() error {
			fn()
			return nil
		})
	})
}

var _ throttle.Clock = (*Loop)(nil)
