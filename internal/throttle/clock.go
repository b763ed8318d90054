package throttle

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running if it has not run yet.
	// A callback that was already queued may still run; callers detect
	// that with their own staleness checks.
	Stop() bool
}

// Clock provides the current time and schedules deferred callbacks.
//
// Callbacks scheduled with AfterFunc must run on the same logical thread
// as the code calling the Throttler or Debouncer. internal/loop provides
// such a clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}
