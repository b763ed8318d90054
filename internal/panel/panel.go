// Package panel owns the render state of one live panel and decides when
// to materialize it.
//
// A Composer accumulates state through independent setters. Most setters
// schedule a throttled materialize; errors, print output and style
// changes can bypass the throttle. Materializing composes the state into
// a document and pushes it to the surface, the only side-effecting step.
//
// All Composer methods must run on a single logical thread, the same one
// its clock delivers timer callbacks on.
package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/dshills/livecode/internal/document"
	"github.com/dshills/livecode/internal/errfmt"
	"github.com/dshills/livecode/internal/notify"
	"github.com/dshills/livecode/internal/scroll"
	"github.com/dshills/livecode/internal/surface"
	"github.com/dshills/livecode/internal/throttle"
)

// ErrNotStarted is returned by operations that need a surface before
// Start has opened one.
var ErrNotStarted = errors.New("panel not started")

// ContentChange is emitted after each successful materialize.
type ContentChange struct {
	// ID identifies the document.
	ID string
	// Marker is the per-render marker of the new document.
	Marker string
}

// Composer owns one panel's render state.
type Composer struct {
	logger       *slog.Logger
	opts         document.Options
	interval     time.Duration
	lineHeightPx int
	formatter    *errfmt.Formatter
	runtime      errfmt.Runtime
	onFatal      func(error)
	onDispose    func()
	newMarker    func() string

	state     *document.State
	throttler *throttle.Throttler
	relay     *scroll.Relay
	changes   *notify.Notifier[ContentChange]

	surface  surface.Surface
	last     document.Document
	disposed atomic.Bool
}

// New creates a Composer whose throttle timers run on clock.
func New(clock throttle.Clock, opts ...Option) *Composer {
	c := &Composer{
		logger:       slog.New(slog.DiscardHandler),
		opts:         document.DefaultOptions(),
		interval:     DefaultRefreshInterval,
		lineHeightPx: scroll.DefaultLineHeightPx,
		runtime:      errfmt.DefaultRuntime,
		newMarker:    func() string { return uuid.NewString() },
		changes:      notify.New[ContentChange](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.formatter == nil {
		c.formatter = errfmt.New()
	}

	c.state = document.NewState(c.lineHeightPx)
	c.relay = scroll.NewRelay(&c.state.Scroll, nil)
	c.throttler = throttle.New(clock, c.interval, c.materialize,
		throttle.WithErrorHandler(c.fatal))
	return c
}

// Start opens a surface labelled label on host and shows the landing
// document.
func (c *Composer) Start(host surface.Host, label string) error {
	sf, err := host.Open(label)
	if err != nil {
		return fmt.Errorf("open panel surface: %w", err)
	}
	c.attach(sf)

	landing := document.Landing(label, c.opts, c.newMarker())
	if err := sf.SetContent(landing); err != nil {
		if errors.Is(err, surface.ErrDisposed) {
			c.logger.Warn("panel closed before landing page was shown")
			return nil
		}
		return fmt.Errorf("show landing page: %w", err)
	}
	c.last = landing
	c.changes.Notify(ContentChange{ID: landing.ID, Marker: landing.Marker})
	return nil
}

// Attach uses sf as the panel surface without showing a landing page.
func (c *Composer) Attach(sf surface.Surface) {
	c.attach(sf)
}

func (c *Composer) attach(sf surface.Surface) {
	c.surface = sf
	c.relay.Attach(sf)
	sf.OnMessage(func(msg scroll.Message) {
		c.relay.Deliver(msg)
	})
	sf.OnDispose(c.surfaceDisposed)
}

// surfaceDisposed runs when the user closes the panel. It may run on any
// goroutine, so it only touches atomic state.
func (c *Composer) surfaceDisposed() {
	c.disposed.Store(true)
	c.relay.Dispose()
	c.logger.Info("panel surface disposed")
	if c.onDispose != nil {
		c.onDispose()
	}
}

// Subscribe registers an observer for content changes.
func (c *Composer) Subscribe(fn notify.Observer[ContentChange]) *notify.Subscription[ContentChange] {
	return c.changes.Subscribe(fn)
}

// State returns the render state. Callers must not mutate it.
func (c *Composer) State() *document.State {
	return c.state
}

// Last returns the most recently pushed document.
func (c *Composer) Last() document.Document {
	return c.last
}

// Disposed reports whether the panel has been torn down.
func (c *Composer) Disposed() bool {
	return c.disposed.Load()
}

// SetOptions replaces the document options. They apply to the next
// materialize.
func (c *Composer) SetOptions(opts document.Options) {
	c.opts = opts
}

// SetRefreshInterval changes the throttle interval.
func (c *Composer) SetRefreshInterval(d time.Duration) {
	c.throttler.SetInterval(d)
}

// UpdateVariables stores a variables snapshot and schedules a throttled
// materialize. A nil snapshot clears the variables region.
func (c *Composer) UpdateVariables(snapshot any) error {
	if snapshot == nil {
		c.state.Variables = nil
		return c.throttler.Call()
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	c.state.Variables = data
	return c.throttler.Call()
}

// UpdateTime records an evaluation duration, floored to whole
// milliseconds, and schedules a throttled materialize.
func (c *Composer) UpdateTime(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	c.state.RecordTime(d.Milliseconds())
	return c.throttler.Call()
}

// UpdateError formats text and stores it as the error region. Empty text
// clears the region. With immediate set the panel materializes now,
// regardless of the throttle window; otherwise the error shows with the
// next materialize.
func (c *Composer) UpdateError(text string, immediate bool) error {
	c.state.Error = c.formatter.Format(text)
	if immediate {
		return c.throttler.Immediate()
	}
	return nil
}

// HandlePrint appends escaped print output and materializes immediately.
func (c *Composer) HandlePrint(text string) error {
	c.state.Print += html.EscapeString(text)
	return c.throttler.Immediate()
}

// ClearPrint empties the print region. It does not materialize.
func (c *Composer) ClearPrint() {
	c.state.Print = ""
}

// InjectCustomStyle stores user CSS, materializing now if immediate is set.
func (c *Composer) InjectCustomStyle(css string, immediate bool) error {
	c.state.CustomStyle = css
	if immediate {
		return c.throttler.Immediate()
	}
	return nil
}

// SetScrollTarget sets the line the next document scrolls to and tells
// the live document to scroll there now. Negative lines clamp to 0.
func (c *Composer) SetScrollTarget(line int) error {
	if err := c.relay.SetTarget(line); err != nil {
		return fmt.Errorf("post scroll message: %w", err)
	}
	return nil
}

// DisplayProcessError shows a failure of the evaluator process itself,
// with an install hint when the runtime looks missing.
func (c *Composer) DisplayProcessError(text string) error {
	return c.UpdateError(errfmt.ProcessError(text, c.runtime), true)
}

// Dispose cancels pending materializations and stops scroll delivery.
// It does not close the surface.
func (c *Composer) Dispose() {
	c.throttler.Cancel()
	c.relay.Dispose()
	c.disposed.Store(true)
}

// Close disposes the composer and its surface.
func (c *Composer) Close() error {
	c.Dispose()
	c.changes.Close()
	if c.surface == nil {
		return nil
	}
	return c.surface.Dispose()
}

// materialize composes the current state and pushes it to the surface.
func (c *Composer) materialize() error {
	if c.surface == nil {
		return nil
	}
	if c.disposed.Load() {
		c.logger.Debug("materialize skipped, panel disposed")
		return nil
	}

	c.relay.Sync()
	doc := document.Compose(c.state, c.opts, c.newMarker())

	if err := c.surface.SetContent(doc); err != nil {
		if errors.Is(err, surface.ErrDisposed) {
			c.logger.Warn("panel closed during update", "error", err)
			return nil
		}
		c.logger.Error("panel update failed", "error", err)
		return fmt.Errorf("push panel content: %w", err)
	}

	c.last = doc
	c.changes.Notify(ContentChange{ID: doc.ID, Marker: doc.Marker})
	return nil
}

// fatal handles errors from deferred materializations.
func (c *Composer) fatal(err error) {
	if c.onFatal != nil {
		c.onFatal(err)
		return
	}
	c.logger.Error("deferred panel update failed", "error", err)
}
