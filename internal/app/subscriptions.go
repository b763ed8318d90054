package app

import (
	"slices"

	"github.com/dshills/livecode/internal/config"
)

// configChanged runs on the settings watcher goroutine and hands the new
// settings to the loop.
func (app *Application) configChanged(c config.Change) {
	app.postTask(func() error { return app.applySettings(c.New) })
}

// applySettings updates running components. Document options take effect
// with the next update; the refresh interval and evaluation delay apply
// immediately. Surface, logging and evaluator command changes need a
// restart.
func (app *Application) applySettings(s config.Settings) error {
	old := app.settings
	app.settings = s

	app.panel.SetOptions(documentOptions(s, app.host))
	app.panel.SetRefreshInterval(s.Panel.RefreshInterval)
	app.watcher.SetDelay(s.Evaluator.Delay)

	if s.Surface != old.Surface || s.Logging != old.Logging || !slices.Equal(s.Evaluator.Command, old.Evaluator.Command) {
		app.logger.Warn("some settings changes apply after restart")
	}

	if s.Panel.CustomCSS != old.Panel.CustomCSS {
		return app.panel.InjectCustomStyle(s.Panel.CustomCSS, true)
	}
	return nil
}
