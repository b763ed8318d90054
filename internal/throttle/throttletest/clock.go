// Package throttletest provides a manually advanced clock for tests of
// throttled components.
package throttletest

import (
	"sort"
	"time"

	"github.com/dshills/livecode/internal/throttle"
)

// Clock is a throttle.Clock whose time only moves on Advance. Timer
// callbacks run synchronously inside Advance, on the caller's goroutine.
type Clock struct {
	now    time.Time
	timers []*timer
}

type timer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// NewClock creates a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time { return c.now }

// AfterFunc schedules fn to run when the clock passes now+d.
func (c *Clock) AfterFunc(d time.Duration, fn func()) throttle.Timer {
	t := &timer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing due timers in deadline order.
func (c *Clock) Advance(d time.Duration) {
	end := c.now.Add(d)
	for {
		next := c.next(end)
		if next == nil {
			break
		}
		c.now = next.at
		next.fired = true
		next.fn()
	}
	c.now = end
}

// Pending returns the number of armed timers.
func (c *Clock) Pending() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *Clock) next(end time.Time) *timer {
	var live []*timer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(live, func(i, j int) bool { return live[i].at.Before(live[j].at) })
	if len(live) == 0 || live[0].at.After(end) {
		return nil
	}
	return live[0]
}

var _ throttle.Clock = (*Clock)(nil)
