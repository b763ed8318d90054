// Package app wires LiveCode together: settings, logging, the main loop,
// the panel composer and its surface, the evaluator process and the
// source watcher. It manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dshills/livecode/internal/config"
	"github.com/dshills/livecode/internal/evaluator"
	"github.com/dshills/livecode/internal/loop"
	"github.com/dshills/livecode/internal/notify"
	"github.com/dshills/livecode/internal/panel"
	"github.com/dshills/livecode/internal/surface"
	"github.com/dshills/livecode/internal/watcher"
)

// Evaluator runs evaluation requests. *evaluator.Evaluator implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluator.Request) error
	Stop() error
}

// EvaluatorFactory creates the evaluator for the given settings. Results
// must be reported to h.
type EvaluatorFactory func(s config.EvaluatorSettings, dir string, h evaluator.Handler, logger *slog.Logger) Evaluator

// Options configures the application.
type Options struct {
	// SourcePath is the file evaluated on every change.
	SourcePath string

	// WorkspacePath is searched for a project settings file.
	// Defaults to the source file's directory.
	WorkspacePath string

	// ConfigPath is an explicit project settings file.
	ConfigPath string

	// Sources replaces settings discovery entirely when set.
	Sources *config.Sources

	// Overrides are settings from the command line, keyed by dot path.
	Overrides map[string]any

	// Debug forces debug logging.
	Debug bool

	// LogOutput receives human-readable logs. Defaults to os.Stderr.
	LogOutput io.Writer

	// Logger replaces the logger built from settings.
	Logger *slog.Logger

	// Host replaces the surface host selected by settings.
	Host surface.Host

	// NewEvaluator replaces the evaluator process.
	NewEvaluator EvaluatorFactory
}

// Application is the central coordinator for all LiveCode components.
type Application struct {
	opts   Options
	source string

	logger    *slog.Logger
	logCloser io.Closer

	config    *config.Manager
	configSub *notify.Subscription[config.Change]

	loop      *loop.Loop
	panel     *panel.Composer
	host      surface.Host
	evaluator Evaluator
	watcher   *watcher.Watcher

	// Owned by the loop.
	settings  config.Settings
	savedCode string

	running      atomic.Bool
	shutdownOnce sync.Once
}

// New creates an Application. Nothing is opened or started until Run.
func New(opts Options) (*Application, error) {
	if opts.SourcePath == "" {
		return nil, ErrNoSource
	}
	source, err := filepath.Abs(opts.SourcePath)
	if err != nil {
		return nil, &ComponentError{Component: "app", Action: "resolve source path", Err: err}
	}
	if opts.WorkspacePath == "" {
		opts.WorkspacePath = filepath.Dir(source)
	}

	app := &Application{
		opts:   opts,
		source: source,
	}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Run shows the panel, evaluates the source once, then re-evaluates on
// every change until ctx is cancelled, the panel is closed, or a fatal
// error occurs. Cancellation and panel close return nil.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.Shutdown()

	if err := app.config.Watch(ctx); err != nil {
		app.logger.Warn("settings files not watched", "error", err)
	}

	label := filepath.Base(app.source)
	_ = app.loop.Post(func() error {
		if err := app.panel.Start(app.host, label); err != nil {
			return &ComponentError{Component: "panel", Action: "start", Err: err}
		}
		app.panel.ClearPrint()
		return app.evaluate()
	})

	app.logger.Info("livecode running", "source", app.source, "surface", app.settings.Surface.Kind)
	err := app.loop.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Shutdown stops every component. It is safe to call more than once.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(app.shutdown)
}

// shutdown performs cleanup in reverse initialization order.
func (app *Application) shutdown() {
	app.loop.Stop()

	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			app.logger.Debug("close watcher", "error", err)
		}
	}
	if app.evaluator != nil {
		if err := app.evaluator.Stop(); err != nil {
			app.logger.Debug("stop evaluator", "error", err)
		}
	}
	if app.panel != nil {
		if err := app.panel.Close(); err != nil {
			app.logger.Debug("close panel", "error", err)
		}
	}
	if app.configSub != nil {
		app.configSub.Unsubscribe()
	}
	if app.config != nil {
		_ = app.config.Close()
	}

	app.logger.Info("livecode stopped")
	if app.logCloser != nil {
		_ = app.logCloser.Close()
	}
}

// IsRunning returns true if Run has been called.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Source returns the absolute path of the evaluated file.
func (app *Application) Source() string {
	return app.source
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// Panel returns the panel composer. Its methods must run on the loop.
func (app *Application) Panel() *panel.Composer {
	return app.panel
}

// Loop returns the main loop.
func (app *Application) Loop() *loop.Loop {
	return app.loop
}
