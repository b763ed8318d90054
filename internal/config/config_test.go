package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(Sources{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Settings{
		Panel: PanelSettings{
			PrintResultPlacement: "top",
			ShowToLevel:          2,
			MaxStringLength:      70,
			RefreshInterval:      50 * time.Millisecond,
			LineHeightPx:         19,
			SlowerColor:          "#ff0000",
			FasterColor:          "#008000",
		},
		Evaluator: EvaluatorSettings{
			Command:            []string{"python3", "-u", "arepl_python_evaluator.py"},
			ShowGlobalVars:     true,
			DefaultFilterVars:  []string{},
			DefaultFilterTypes: []string{},
			RuntimeName:        "python 3",
			DownloadURL:        "https://www.python.org/downloads/",
			Delay:              300 * time.Millisecond,
		},
		Surface: SurfaceSettings{Kind: "web", Addr: "127.0.0.1:8421", Output: "livecode.html"},
		Logging: LoggingSettings{Level: "info"},
	}
	if diff := cmp.Diff(want, *s, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_LayerPrecedence(t *testing.T) {
	dir := t.TempDir()
	user := filepath.Join(dir, "settings.toml")
	project := filepath.Join(dir, ".livecode.yaml")

	writeFile(t, user, `
[panel]
showToLevel = 3
maxStringLength = 10
refreshInterval = 100
printResultPlacement = "bottom"
`)
	writeFile(t, project, `
panel:
  showToLevel: 4
  fasterColor: "#0F0"
`)

	s, err := Load(Sources{
		UserFile:    user,
		ProjectFile: project,
		Overrides:   map[string]any{"panel": map[string]any{"maxStringLength": 99}},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Panel.ShowToLevel != 4 {
		t.Errorf("ShowToLevel = %d, want 4 (project beats user)", s.Panel.ShowToLevel)
	}
	if s.Panel.MaxStringLength != 99 {
		t.Errorf("MaxStringLength = %d, want 99 (override beats files)", s.Panel.MaxStringLength)
	}
	if s.Panel.RefreshInterval != 100*time.Millisecond {
		t.Errorf("RefreshInterval = %v, want 100ms (bare number is ms)", s.Panel.RefreshInterval)
	}
	if s.Panel.PrintResultPlacement != "bottom" {
		t.Errorf("PrintResultPlacement = %q, want bottom", s.Panel.PrintResultPlacement)
	}
	if s.Panel.FasterColor != "#00ff00" {
		t.Errorf("FasterColor = %q, want normalised #00ff00", s.Panel.FasterColor)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("LIVECODETEST_PANEL_REFRESH_INTERVAL", "0")
	t.Setenv("LIVECODETEST_SURFACE_KIND", "file")
	t.Setenv("LIVECODETEST_PANEL_CUSTOM_CSS", "p{}")

	s, err := Load(Sources{EnvPrefix: "LIVECODETEST_"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Panel.RefreshInterval != 0 {
		t.Errorf("RefreshInterval = %v, want 0", s.Panel.RefreshInterval)
	}
	if s.Surface.Kind != "file" {
		t.Errorf("Surface.Kind = %q, want file", s.Surface.Kind)
	}
	if s.Panel.CustomCSS != "p{}" {
		t.Errorf("CustomCSS = %q, want p{}", s.Panel.CustomCSS)
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	writeFile(t, path, "[panel\n")

	_, err := Load(Sources{UserFile: path})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Load() error = %v, want *ParseError", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		layer map[string]any
		path  string
	}{
		{"placement", map[string]any{"panel": map[string]any{"printResultPlacement": "left"}}, "panel.printResultPlacement"},
		{"negative level", map[string]any{"panel": map[string]any{"showToLevel": -1}}, "panel.showToLevel"},
		{"line height", map[string]any{"panel": map[string]any{"lineHeightPx": 0}}, "panel.lineHeightPx"},
		{"colour", map[string]any{"panel": map[string]any{"slowerColor": "red"}}, "panel.slowerColor"},
		{"command", map[string]any{"evaluator": map[string]any{"command": []any{}}}, "evaluator.command"},
		{"surface", map[string]any{"surface": map[string]any{"kind": "tty"}}, "surface.kind"},
		{"log level", map[string]any{"logging": map[string]any{"level": "loud"}}, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Sources{Overrides: tt.layer})
			if !errors.Is(err, ErrInvalidSetting) {
				t.Fatalf("Load() error = %v, want ErrInvalidSetting", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Path != tt.path {
				t.Errorf("ValidationError path = %v, want %s", err, tt.path)
			}
		})
	}
}

func TestDefaultSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".livecode.yaml"), "panel: {}\n")

	src := DefaultSources(dir, "")
	if want := filepath.Join(dir, ".livecode.yaml"); src.ProjectFile != want {
		t.Errorf("ProjectFile = %q, want %q", src.ProjectFile, want)
	}
	if src.EnvPrefix != EnvPrefix {
		t.Errorf("EnvPrefix = %q, want %q", src.EnvPrefix, EnvPrefix)
	}

	explicit := DefaultSources(dir, "/etc/livecode.toml")
	if explicit.ProjectFile != "/etc/livecode.toml" {
		t.Errorf("explicit ProjectFile = %q", explicit.ProjectFile)
	}
}

func TestManager_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".livecode.toml")
	writeFile(t, path, "[panel]\nshowToLevel = 3\n")

	m, err := NewManager(Sources{ProjectFile: path})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	var changes []Change
	m.Subscribe(func(c Change) { changes = append(changes, c) })

	writeFile(t, path, "[panel]\nshowToLevel = 5\n")
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(changes) != 1 || changes[0].Old.Panel.ShowToLevel != 3 || changes[0].New.Panel.ShowToLevel != 5 {
		t.Errorf("changes = %+v, want 3 -> 5", changes)
	}

	writeFile(t, path, "[panel]\nshowToLevel = -1\n")
	if err := m.Reload(); !errors.Is(err, ErrInvalidSetting) {
		t.Errorf("Reload() error = %v, want ErrInvalidSetting", err)
	}
	if got := m.Settings().Panel.ShowToLevel; got != 5 {
		t.Errorf("ShowToLevel after bad reload = %d, want 5", got)
	}
}

func TestManager_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".livecode.toml")
	writeFile(t, path, "[panel]\nshowToLevel = 3\n")

	m, err := NewManager(Sources{ProjectFile: path})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	reloaded := make(chan Change, 8)
	m.Subscribe(func(c Change) { reloaded <- c })

	if err := m.Watch(context.Background()); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	writeFile(t, path, "[panel]\nshowToLevel = 7\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.New.Panel.ShowToLevel == 7 {
				return
			}
		case <-deadline:
			t.Fatal("settings change not observed")
		}
	}
}
