// Package filesurface writes each panel document to a file on disk.
//
// It is the simplest host: any browser pointed at the output file shows
// the latest document after a manual reload. Scroll messages have no live
// document to reach and are dropped.
package filesurface

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/livecode/internal/document"
	"github.com/dshills/livecode/internal/scroll"
	"github.com/dshills/livecode/internal/surface"
)

// Host opens file surfaces that all write to the same path.
type Host struct {
	Path string

	// Assets, when set, is copied next to Path on Open so relative
	// stylesheet and script references in documents resolve. Existing
	// files are left alone.
	Assets fs.FS

	// AssetsDir is the directory under Path's directory that receives
	// Assets. Defaults to "media".
	AssetsDir string
}

// NewHost creates a host writing documents to path.
func NewHost(path string) *Host {
	return &Host{Path: path}
}

// Open creates a surface for label. The label is unused; the document
// carries its own title.
func (h *Host) Open(label string) (surface.Surface, error) {
	if h.Path == "" {
		return nil, fmt.Errorf("filesurface: no output path")
	}
	dir := filepath.Dir(h.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if h.Assets != nil {
		assetsDir := h.AssetsDir
		if assetsDir == "" {
			assetsDir = "media"
		}
		if err := os.CopyFS(filepath.Join(dir, assetsDir), h.Assets); err != nil && !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to copy assets: %w", err)
		}
	}
	return &Surface{path: h.Path}, nil
}

// Surface writes documents to a single file.
type Surface struct {
	surface.Callbacks

	mu     sync.Mutex
	path   string
	writes int
}

// Path returns the output file path.
func (s *Surface) Path() string {
	return s.path
}

// Writes returns the number of documents written.
func (s *Surface) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// SetContent writes doc atomically using a temp file and rename.
func (s *Surface) SetContent(doc document.Document) error {
	if s.Disposed() {
		return surface.ErrDisposed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(doc.HTML), 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	s.writes++
	return nil
}

// PostMessage is a no-op: a file has no live document.
func (s *Surface) PostMessage(scroll.Message) error {
	return nil
}

// Dispose marks the surface closed. The output file is kept.
func (s *Surface) Dispose() error {
	s.FireDispose()
	return nil
}
