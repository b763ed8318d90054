package panel

import (
	"log/slog"
	"time"

	"github.com/dshills/livecode/internal/document"
	"github.com/dshills/livecode/internal/errfmt"
)

// DefaultRefreshInterval is the default throttle interval between
// materializations.
const DefaultRefreshInterval = 50 * time.Millisecond

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		c.logger = logger
	}
}

// WithDocumentOptions sets the document composition options.
func WithDocumentOptions(opts document.Options) Option {
	return func(c *Composer) {
		c.opts = opts
	}
}

// WithRefreshInterval sets the throttle interval. Zero disables throttling.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Composer) {
		c.interval = d
	}
}

// WithLineHeight sets the pixel height of one source line.
func WithLineHeight(px int) Option {
	return func(c *Composer) {
		c.lineHeightPx = px
	}
}

// WithFormatter sets the error formatter.
func WithFormatter(f *errfmt.Formatter) Option {
	return func(c *Composer) {
		c.formatter = f
	}
}

// WithRuntime sets the runtime named in missing-runtime hints.
func WithRuntime(rt errfmt.Runtime) Option {
	return func(c *Composer) {
		c.runtime = rt
	}
}

// WithFatalHandler sets the handler for push failures from deferred
// materializations, which have no caller to return to.
func WithFatalHandler(fn func(error)) Option {
	return func(c *Composer) {
		c.onFatal = fn
	}
}

// WithDisposeHandler sets a handler run when the surface reports it was
// torn down. It may run on any goroutine.
func WithDisposeHandler(fn func()) Option {
	return func(c *Composer) {
		c.onDispose = fn
	}
}

// WithMarkerFunc sets the source of per-render markers.
func WithMarkerFunc(fn func() string) Option {
	return func(c *Composer) {
		c.newMarker = fn
	}
}
