package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/livecode/internal/notify"
)

// Change is published after a successful reload.
type Change struct {
	Old Settings
	New Settings
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager holds the current settings and reloads them when their files
// change.
type Manager struct {
	logger  *slog.Logger
	sources Sources
	changes *notify.Notifier[Change]

	mu      sync.RWMutex
	current Settings
	watcher *fsnotify.Watcher
	closed  bool
	done    chan struct{}
}

// NewManager loads src and returns a manager holding the result.
func NewManager(src Sources, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		logger:  slog.New(slog.DiscardHandler),
		sources: src,
		changes: notify.New[Change](),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	s, err := Load(src)
	if err != nil {
		return nil, err
	}
	m.current = *s
	return m, nil
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers an observer for reloads. Observers run on the
// watcher goroutine.
func (m *Manager) Subscribe(fn notify.Observer[Change]) *notify.Subscription[Change] {
	return m.changes.Subscribe(fn)
}

// Reload re-reads every layer. Invalid settings leave the current ones in
// place and return the error.
func (m *Manager) Reload() error {
	s, err := Load(m.sources)
	if err != nil {
		m.logger.Warn("settings reload failed, keeping previous settings", "error", err)
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	old := m.current
	m.current = *s
	m.mu.Unlock()

	m.logger.Info("settings reloaded")
	m.changes.Notify(Change{Old: old, New: *s})
	return nil
}

// Watch reloads settings whenever a settings file is written, created or
// renamed into place, until ctx is done or Close is called.
func (m *Manager) Watch(ctx context.Context) error {
	files := m.sources.Files()
	if len(files) == 0 {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch directories so editors that replace files atomically are seen.
	targets := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			m.logger.Debug("settings directory not watched", "dir", dir, "error", err)
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		w.Close()
		return ErrManagerClosed
	}
	m.watcher = w
	m.mu.Unlock()

	go m.watchLoop(ctx, w, targets)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher, targets map[string]bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !targets[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			m.logger.Debug("settings file changed", "path", ev.Name, "op", ev.Op.String())
			_ = m.Reload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("settings watcher error", "error", err)
		}
	}
}

// Close stops watching and drops all subscribers.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	w := m.watcher
	m.watcher = nil
	close(m.done)
	m.mu.Unlock()

	m.changes.Close()
	if w != nil {
		return w.Close()
	}
	return nil
}
