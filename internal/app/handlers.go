package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dshills/livecode/internal/evaluator"
	"github.com/dshills/livecode/internal/loop"
)

// evalHandler moves evaluator callbacks from the process reader
// goroutines onto the loop.
type evalHandler struct {
	app *Application
}

func (h *evalHandler) OnResult(res evaluator.Result) {
	h.app.postTask(func() error { return h.app.applyResult(res) })
}

func (h *evalHandler) OnPrint(text string) {
	h.app.postTask(func() error { return h.app.panel.HandlePrint(text) })
}

// OnStderr shows stderr alongside print output, as the evaluator's own
// warnings are otherwise invisible.
func (h *evalHandler) OnStderr(text string) {
	h.app.logger.Debug("evaluator stderr", "text", text)
	h.app.postTask(func() error { return h.app.panel.HandlePrint(text + "\n") })
}

func (h *evalHandler) OnProcessError(err error) {
	h.app.postTask(func() error { return h.app.panel.DisplayProcessError(err.Error()) })
}

// postTask queues task on the loop, dropping it once the loop has stopped.
func (app *Application) postTask(task loop.Task) {
	if err := app.loop.Post(task); err != nil && !errors.Is(err, loop.ErrStopped) {
		app.logger.Warn("dropped loop task", "error", err)
	}
}

// post runs fn on the loop. It is the watcher's dispatch function.
func (app *Application) post(fn func()) error {
	return app.loop.Post(func() error {
		fn()
		return nil
	})
}

// applyResult shows one evaluator result. The scroll target is set first
// so the document built from these updates already scrolls there.
// Intermediate dumps carry no timing.
func (app *Application) applyResult(res evaluator.Result) error {
	if res.Lineno > 0 {
		if err := app.panel.SetScrollTarget(res.Lineno); err != nil {
			return err
		}
	}
	if err := app.panel.UpdateError(res.UserError, false); err != nil {
		return err
	}
	if res.InternalError != "" {
		if err := app.panel.UpdateError(res.InternalError, true); err != nil {
			return err
		}
	}

	var snapshot any
	if len(res.UserVariables) > 0 {
		snapshot = res.UserVariables
	}
	if err := app.panel.UpdateVariables(snapshot); err != nil {
		return err
	}

	if !res.Done {
		return nil
	}
	return app.panel.UpdateTime(res.ExecTime)
}

// sourceChanged runs on the loop after the source file settles.
func (app *Application) sourceChanged(path string) {
	app.logger.Debug("re-evaluating", "path", path)
	app.panel.ClearPrint()
	if err := app.evaluate(); err != nil {
		app.loop.Fail(err)
	}
}

// evaluate sends the current source to the evaluator. Process failures
// are shown in the panel; only panel failures are returned.
func (app *Application) evaluate() error {
	code, err := os.ReadFile(app.source)
	if err != nil {
		app.logger.Warn("source not readable", "path", app.source, "error", err)
		return nil
	}

	s := app.settings.Evaluator
	req := evaluator.Request{
		EvalCode:           string(code),
		SavedCode:          app.savedCode,
		FilePath:           app.source,
		ShowGlobalVars:     s.ShowGlobalVars,
		DefaultFilterVars:  s.DefaultFilterVars,
		DefaultFilterTypes: s.DefaultFilterTypes,
	}
	if err := app.evaluator.Evaluate(context.Background(), req); err != nil {
		app.logger.Error("evaluation failed to start", "error", err)
		if perr := app.panel.DisplayProcessError(err.Error()); perr != nil {
			return fmt.Errorf("show evaluator failure: %w", perr)
		}
		return nil
	}
	app.savedCode = string(code)
	return nil
}
