package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dshills/livecode/internal/config"
	"github.com/dshills/livecode/internal/document"
	"github.com/dshills/livecode/internal/errfmt"
	"github.com/dshills/livecode/internal/evaluator"
	"github.com/dshills/livecode/internal/loop"
	"github.com/dshills/livecode/internal/panel"
	"github.com/dshills/livecode/internal/surface"
	"github.com/dshills/livecode/internal/surface/filesurface"
	"github.com/dshills/livecode/internal/surface/websurface"
	"github.com/dshills/livecode/internal/watcher"
)

// Surface kinds accepted by surface.kind.
const (
	SurfaceWeb  = "web"
	SurfaceFile = "file"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		init func() error
	}{
		{"config", b.initConfig},
		{"logging", b.initLogging},
		{"loop", b.initLoop},
		{"host", b.initHost},
		{"panel", b.initPanel},
		{"evaluator", b.initEvaluator},
		{"watcher", b.initWatcher},
		{"subscriptions", b.initSubscriptions},
	}
	for _, step := range steps {
		if err := step.init(); err != nil {
			b.cleanup()
			return err
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	return nil
}

// initConfig loads settings from every layer.
func (b *bootstrapper) initConfig() error {
	var src config.Sources
	if b.opts.Sources != nil {
		src = *b.opts.Sources
	} else {
		src = config.DefaultSources(b.opts.WorkspacePath, b.opts.ConfigPath)
	}
	src.Overrides = b.opts.Overrides

	mgr, err := config.NewManager(src)
	if err != nil {
		return &ComponentError{Component: "config", Action: "load settings", Err: err}
	}
	b.app.config = mgr
	b.app.settings = mgr.Settings()
	return nil
}

// initLogging builds the logger from settings unless one was supplied.
func (b *bootstrapper) initLogging() error {
	if b.opts.Logger != nil {
		b.app.logger = b.opts.Logger
		return nil
	}

	level, err := ParseLevel(b.app.settings.Logging.Level)
	if err != nil {
		return &ComponentError{Component: "logging", Action: "parse level", Err: err}
	}
	if b.opts.Debug {
		level = slog.LevelDebug
	}
	logger, closer, err := NewLogger(LoggerConfig{
		Level:  level,
		Output: b.opts.LogOutput,
		File:   b.app.settings.Logging.File,
	})
	if err != nil {
		return err
	}
	b.app.logger = logger
	b.app.logCloser = closer
	return nil
}

func (b *bootstrapper) initLoop() error {
	b.app.loop = loop.New(loop.WithLogger(b.app.logger.With("component", "loop")))
	return nil
}

// initHost selects the surface host.
func (b *bootstrapper) initHost() error {
	if b.opts.Host != nil {
		b.app.host = b.opts.Host
		return nil
	}

	s := b.app.settings.Surface
	logger := b.app.logger.With("component", "surface")
	switch s.Kind {
	case SurfaceWeb:
		b.app.host = websurface.NewHost(s.Addr, logger)
	case SurfaceFile:
		b.app.host = &filesurface.Host{
			Path:   s.Output,
			Assets: websurface.Media(),
		}
	default:
		return &ComponentError{Component: "surface", Action: "select host", Err: fmt.Errorf("%w: %q", ErrUnknownSurface, s.Kind)}
	}
	return nil
}

// initPanel creates the composer. A failed deferred update ends the run;
// closing the panel stops it cleanly.
func (b *bootstrapper) initPanel() error {
	s := b.app.settings
	b.app.panel = panel.New(b.app.loop,
		panel.WithLogger(b.app.logger.With("component", "panel")),
		panel.WithDocumentOptions(documentOptions(s, b.app.host)),
		panel.WithRefreshInterval(s.Panel.RefreshInterval),
		panel.WithLineHeight(s.Panel.LineHeightPx),
		panel.WithRuntime(runtimeFor(s.Evaluator)),
		panel.WithFatalHandler(b.app.loop.Fail),
		panel.WithDisposeHandler(b.app.loop.Stop),
	)
	if s.Panel.CustomCSS != "" {
		// No surface yet, so nothing is pushed.
		_ = b.app.panel.InjectCustomStyle(s.Panel.CustomCSS, false)
	}
	return nil
}

// initEvaluator creates the evaluator. The process starts on the first
// evaluation.
func (b *bootstrapper) initEvaluator() error {
	factory := b.opts.NewEvaluator
	if factory == nil {
		factory = newProcessEvaluator
	}
	h := &evalHandler{app: b.app}
	b.app.evaluator = factory(b.app.settings.Evaluator, filepath.Dir(b.app.source), h,
		b.app.logger.With("component", "evaluator"))
	return nil
}

// initWatcher watches the source file, delivering changes on the loop.
func (b *bootstrapper) initWatcher() error {
	w, err := watcher.New(b.app.source, b.app.loop, b.app.post, b.app.sourceChanged,
		watcher.WithDelay(b.app.settings.Evaluator.Delay),
		watcher.WithLogger(b.app.logger.With("component", "watcher")),
	)
	if err != nil {
		return &ComponentError{Component: "watcher", Action: "watch source", Err: err}
	}
	b.app.watcher = w
	return nil
}

func (b *bootstrapper) initSubscriptions() error {
	b.app.configSub = b.app.config.Subscribe(b.app.configChanged)
	return nil
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "subscriptions":
			b.app.configSub.Unsubscribe()
		case "watcher":
			_ = b.app.watcher.Close()
		case "evaluator":
			_ = b.app.evaluator.Stop()
		case "panel":
			_ = b.app.panel.Close()
		case "loop":
			b.app.loop.Stop()
		case "logging":
			if b.app.logCloser != nil {
				_ = b.app.logCloser.Close()
			}
		case "config":
			_ = b.app.config.Close()
		}
	}
}

func newProcessEvaluator(s config.EvaluatorSettings, dir string, h evaluator.Handler, logger *slog.Logger) Evaluator {
	return evaluator.New(s.Command, h,
		evaluator.WithDir(dir),
		evaluator.WithLogger(logger),
	)
}

// documentOptions maps panel settings onto composition options. Web
// surfaces also need the bridge script that relays live messages.
func documentOptions(s config.Settings, host surface.Host) document.Options {
	opts := document.DefaultOptions()
	opts.PrintPlacement = document.Placement(s.Panel.PrintResultPlacement)
	opts.ShowFooter = s.Panel.ShowFooter
	opts.ShowToLevel = s.Panel.ShowToLevel
	opts.MaxStringLength = s.Panel.MaxStringLength
	opts.SlowerColor = s.Panel.SlowerColor
	opts.FasterColor = s.Panel.FasterColor
	opts.StylesheetHref = websurface.StylesheetHref
	opts.RendererScriptSrc = websurface.RendererScriptSrc
	if _, ok := host.(*websurface.Host); ok {
		opts.ExtraScripts = []string{websurface.BridgeScriptSrc}
	}
	return opts
}

func runtimeFor(s config.EvaluatorSettings) errfmt.Runtime {
	rt := errfmt.DefaultRuntime
	if s.RuntimeName != "" {
		rt.Name = s.RuntimeName
	}
	if s.DownloadURL != "" {
		rt.DownloadURL = s.DownloadURL
	}
	return rt
}
