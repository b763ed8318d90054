package throttle

import "time"

// Debouncer groups rapid successive calls into a single call after a
// quiet period. The watcher uses it to wait for the user to pause typing
// before re-evaluating.
type Debouncer struct {
	clock    Clock
	delay    time.Duration
	timer    Timer
	pending  bool
	seq      uint64 // sequence number to detect stale callbacks
	callback func()
}

// NewDebouncer creates a new debouncer with the specified delay.
//
// The callback will be invoked after no new calls have been made
// for at least 'delay' duration. A zero delay invokes the callback
// synchronously from Call.
func NewDebouncer(clock Clock, delay time.Duration, callback func()) *Debouncer {
	return &Debouncer{
		clock:    clock,
		delay:    delay,
		callback: callback,
	}
}

// SetDelay changes the quiet period used by subsequent calls.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.delay = delay
}

// Call schedules the callback to run after the debounce delay.
func (d *Debouncer) Call() {
	if d.delay <= 0 {
		d.Cancel()
		d.callback()
		return
	}

	d.pending = true
	d.seq++
	currentSeq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = d.clock.AfterFunc(d.delay, func() {
		// Only execute if this is still the current scheduled callback
		if d.pending && d.seq == currentSeq {
			d.pending = false
			d.timer = nil
			d.callback()
		}
	})
}

// CallImmediate runs the callback immediately if there's a pending call,
// canceling any scheduled debounced call.
func (d *Debouncer) CallImmediate() {
	wasPending := d.pending
	d.Cancel()
	if wasPending {
		d.callback()
	}
}

// Cancel cancels any pending debounced call.
func (d *Debouncer) Cancel() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
}

// IsPending returns true if there's a pending debounced call.
func (d *Debouncer) IsPending() bool {
	return d.pending
}
