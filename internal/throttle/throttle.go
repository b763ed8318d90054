// Package throttle rate-limits calls to a function.
//
// Throttler collapses bursts of calls into at most one execution per
// interval with exactly one trailing execution when calls arrived during
// the cooldown. Debouncer waits for a quiet period before firing.
//
// Neither type is safe for concurrent use. Both expect every call, and
// every deferred callback delivered by their Clock, to run on a single
// logical thread.
package throttle

import (
	"time"
)

// Throttler provides rate limiting that allows at most one call per interval.
//
// The first call outside a window executes immediately. Calls inside a
// window mark the throttler pending; when the window elapses a single
// trailing execution runs. Intermediate calls are coalesced, never queued.
type Throttler struct {
	clock    Clock
	interval time.Duration
	fn       func() error
	onError  func(error)

	lastFire time.Time
	fired    bool
	pending  bool
	running  bool
	seq      uint64 // sequence number to detect stale callbacks
	timer    Timer
}

// Option configures a Throttler.
type Option func(*Throttler)

// WithErrorHandler sets the handler for errors returned by deferred
// executions. Errors from executions that run inside Call or Immediate
// are returned to the caller instead.
func WithErrorHandler(fn func(error)) Option {
	return func(t *Throttler) {
		t.onError = fn
	}
}

// New creates a Throttler that runs fn at most once per interval.
// An interval of zero disables throttling: every Call runs fn synchronously.
func New(clock Clock, interval time.Duration, fn func() error, opts ...Option) *Throttler {
	if interval < 0 {
		interval = 0
	}
	t := &Throttler{
		clock:    clock,
		interval: interval,
		fn:       fn,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Interval returns the current throttle interval.
func (t *Throttler) Interval() time.Duration {
	return t.interval
}

// SetInterval changes the throttle interval. A pending trailing
// execution keeps its original schedule.
func (t *Throttler) SetInterval(interval time.Duration) {
	if interval < 0 {
		interval = 0
	}
	t.interval = interval
}

// Call attempts to run fn, respecting the throttle interval.
//
// The returned error is fn's error when fn ran synchronously, nil otherwise.
func (t *Throttler) Call() error {
	if t.interval == 0 {
		return t.fn()
	}

	// fn re-entering its own throttler owes one more execution.
	if t.running {
		t.pending = true
		t.schedule(t.interval)
		return nil
	}

	now := t.clock.Now()
	elapsed := now.Sub(t.lastFire)

	if !t.fired || elapsed >= t.interval {
		// A leftover timer from an older window is now redundant.
		t.cancelTimer()
		t.pending = false
		return t.fire(now)
	}

	t.pending = true
	t.schedule(t.interval - elapsed)
	return nil
}

// Immediate runs fn now regardless of the window, absorbing any pending
// trailing execution. The window restarts from this execution.
func (t *Throttler) Immediate() error {
	if t.running {
		t.pending = true
		t.schedule(t.interval)
		return nil
	}
	t.cancelTimer()
	t.pending = false
	return t.fire(t.clock.Now())
}

// IsPending returns true if a trailing execution is owed.
func (t *Throttler) IsPending() bool {
	return t.pending
}

// Cancel cancels any pending trailing execution.
func (t *Throttler) Cancel() {
	t.cancelTimer()
	t.pending = false
}

// Reset cancels pending work and forgets the last execution time.
func (t *Throttler) Reset() {
	t.Cancel()
	t.fired = false
	t.lastFire = time.Time{}
}

// schedule arms the trailing timer if none is armed.
func (t *Throttler) schedule(delay time.Duration) {
	if t.timer != nil {
		return
	}
	t.seq++
	currentSeq := t.seq
	t.timer = t.clock.AfterFunc(delay, func() {
		t.flush(currentSeq)
	})
}

// flush is the trailing-edge callback.
func (t *Throttler) flush(seq uint64) {
	if seq != t.seq {
		return
	}
	t.timer = nil
	if !t.pending {
		return
	}
	t.pending = false
	if err := t.fire(t.clock.Now()); err != nil && t.onError != nil {
		t.onError(err)
	}
}

func (t *Throttler) fire(now time.Time) error {
	t.lastFire = now
	t.fired = true
	t.running = true
	defer func() { t.running = false }()
	return t.fn()
}

func (t *Throttler) cancelTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	// Increment seq to invalidate any already-queued timer callback
	t.seq++
}
