// Package watcher re-evaluates a source file when it changes on disk.
//
// Raw fsnotify events arrive on their own goroutine. The watcher hands each
// relevant event to a dispatch function, normally one that posts onto the
// main loop, and debounces there so the change callback always runs on the
// loop's thread.
package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/livecode/internal/throttle"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op is the kind of change seen on the watched file.
type Op uint32

const (
	// OpCreate means the file was created, including atomic replace-by-rename.
	OpCreate Op = 1 << iota
	// OpWrite means the file was written to.
	OpWrite
	// OpRemove means the file was removed.
	OpRemove
	// OpRename means the file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Dispatch runs fn on the thread that owns the watcher's clock.
type Dispatch func(fn func()) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDelay sets the quiet period before a change is reported.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.delay = d
	}
}

// Watcher reports changes to a single file.
type Watcher struct {
	path     string
	dispatch Dispatch
	onChange func(path string)
	logger   *slog.Logger
	delay    time.Duration

	fsw      *fsnotify.Watcher
	debounce *throttle.Debouncer

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New watches path. onChange runs through dispatch once the file has been
// quiet for the configured delay. The debouncer is driven by clock, so
// clock callbacks must also run on the dispatch thread.
func New(path string, clock throttle.Clock, dispatch Dispatch, onChange func(path string), opts ...Option) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotExist, absPath)
		}
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		dispatch: dispatch,
		onChange: onChange,
		logger:   slog.New(slog.DiscardHandler),
		delay:    300 * time.Millisecond,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debounce = throttle.NewDebouncer(clock, w.delay, func() { w.onChange(w.path) })

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace files by rename, which drops a watch on the
	// file itself. Watching the directory survives that.
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// SetDelay changes the quiet period. Call it on the dispatch thread.
func (w *Watcher) SetDelay(d time.Duration) {
	w.debounce.SetDelay(d)
}

// Trigger reports a change as if the file had been written.
// Call it on the dispatch thread.
func (w *Watcher) Trigger() {
	w.debounce.Call()
}

// Flush runs a pending change report now. Call it on the dispatch thread.
func (w *Watcher) Flush() {
	w.debounce.CallImmediate()
}

// Pending reports whether a change report is waiting for the quiet period.
// Call it on the dispatch thread.
func (w *Watcher) Pending() bool {
	return w.debounce.IsPending()
}

// Close stops watching. A change already handed to dispatch may still run.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	op := convertOp(ev.Op)
	// Removal and rename leave nothing to evaluate; the following create
	// of an atomic save is what matters.
	if !op.Has(OpWrite) && !op.Has(OpCreate) {
		return
	}
	if w.isClosed() {
		return
	}

	w.logger.Debug("source changed", "path", w.path, "op", op)
	if err := w.dispatch(w.debounce.Call); err != nil {
		w.logger.Debug("dropping change event", "error", err)
	}
}

// convertOp converts fsnotify.Op to watcher.Op. Chmod is ignored.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
