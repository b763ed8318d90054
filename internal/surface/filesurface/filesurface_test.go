package filesurface

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/dshills/livecode/internal/document"
	"github.com/dshills/livecode/internal/scroll"
	"github.com/dshills/livecode/internal/surface"
)

func TestSurface_SetContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "panel.html")
	s, err := NewHost(path).Open("main.py")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	for _, body := range []string{"<p>one</p>", "<p>two</p>"} {
		if err := s.SetContent(document.Document{HTML: body}); err != nil {
			t.Fatalf("SetContent() error = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "<p>two</p>" {
		t.Errorf("file = %q, want latest document", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	if n := s.(*Surface).Writes(); n != 2 {
		t.Errorf("Writes() = %d, want 2", n)
	}
}

func TestSurface_Disposed(t *testing.T) {
	s, err := NewHost(filepath.Join(t.TempDir(), "panel.html")).Open("x")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	disposed := 0
	s.OnDispose(func() { disposed++ })

	if err := s.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	_ = s.Dispose()

	if disposed != 1 {
		t.Errorf("dispose handler ran %d times, want 1", disposed)
	}
	if err := s.SetContent(document.Document{HTML: "x"}); !errors.Is(err, surface.ErrDisposed) {
		t.Errorf("SetContent() after dispose error = %v, want ErrDisposed", err)
	}
	if err := s.PostMessage(scroll.Message{Line: 1}); err != nil {
		t.Errorf("PostMessage() error = %v", err)
	}
}

func TestHost_NoPath(t *testing.T) {
	if _, err := NewHost("").Open("x"); err == nil {
		t.Error("Open() with empty path should fail")
	}
}

func TestHost_CopiesAssets(t *testing.T) {
	dir := t.TempDir()
	host := &Host{
		Path: filepath.Join(dir, "panel.html"),
		Assets: fstest.MapFS{
			"livecode.css": &fstest.MapFile{Data: []byte("body{}")},
		},
	}

	for i := 0; i < 2; i++ {
		if _, err := host.Open("main.py"); err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "media", "livecode.css"))
	if err != nil {
		t.Fatalf("asset not copied: %v", err)
	}
	if string(data) != "body{}" {
		t.Errorf("asset = %q", data)
	}
}
