package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mitchellh/mapstructure"

	"github.com/dshills/livecode/internal/config/loader"
)

// EnvPrefix prefixes environment variables read as settings.
const EnvPrefix = "LIVECODE_"

// ProjectFiles are the project settings file names, in lookup order.
var ProjectFiles = []string{".livecode.toml", ".livecode.yaml", ".livecode.yml"}

// Sources names the configuration layers to load.
type Sources struct {
	// UserFile is the per-user settings file. Empty skips the layer.
	UserFile string

	// ProjectFile is the project settings file. Empty skips the layer.
	ProjectFile string

	// EnvPrefix enables the environment layer when non-empty.
	EnvPrefix string

	// Overrides is the highest layer, typically from command-line flags.
	Overrides map[string]any
}

// DefaultSources returns the standard layers for a workspace directory.
// An explicit path replaces project file discovery.
func DefaultSources(workspace, explicit string) Sources {
	src := Sources{
		UserFile:  UserFile(),
		EnvPrefix: EnvPrefix,
	}
	if explicit != "" {
		src.ProjectFile = explicit
		return src
	}
	for _, name := range ProjectFiles {
		path := filepath.Join(workspace, name)
		if _, err := os.Stat(path); err == nil {
			src.ProjectFile = path
			break
		}
	}
	return src
}

// UserFile returns the per-user settings path,
// $XDG_CONFIG_HOME/livecode/settings.toml or the platform equivalent.
func UserFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "livecode", "settings.toml")
}

// Files returns the settings files the sources read, for watching.
func (s Sources) Files() []string {
	var files []string
	for _, f := range []string{s.UserFile, s.ProjectFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// Load reads, merges, decodes and validates every layer in src.
func Load(src Sources) (*Settings, error) {
	merged := Defaults()

	var layers []loader.Loader
	if src.UserFile != "" {
		layers = append(layers, loader.NewTOMLLoader(src.UserFile))
	}
	if src.ProjectFile != "" {
		layers = append(layers, loader.ForFile(src.ProjectFile))
	}
	if src.EnvPrefix != "" {
		env := loader.NewEnvLoader(src.EnvPrefix)
		env.AddMapping(src.EnvPrefix+"PANEL_CUSTOM_CSS", "panel.customCSS")
		env.AddMapping(src.EnvPrefix+"EVALUATOR_DOWNLOAD_URL", "evaluator.downloadURL")
		layers = append(layers, env)
	}

	for _, l := range layers {
		layer, err := l.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, layer)
	}
	merged = loader.DeepMerge(merged, src.Overrides)

	return Decode(merged)
}

// Decode converts a merged settings map to validated Settings.
func Decode(m map[string]any) (*Settings, error) {
	var s Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			millisecondsHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// millisecondsHook reads bare numbers as milliseconds for duration fields.
func millisecondsHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	default:
		return data, nil
	}
}

// Validate checks every setting and normalises colours in place. All
// problems are reported together; each matches ErrInvalidSetting.
func (s *Settings) Validate() error {
	var errs []error
	bad := func(path string, value any, msg string) {
		errs = append(errs, &ValidationError{Path: path, Value: value, Message: msg})
	}

	p := &s.Panel
	switch p.PrintResultPlacement {
	case "top", "bottom":
	default:
		bad("panel.printResultPlacement", p.PrintResultPlacement, "must be top or bottom")
	}
	if p.ShowToLevel < 0 {
		bad("panel.showToLevel", p.ShowToLevel, "must not be negative")
	}
	if p.MaxStringLength < 0 {
		bad("panel.maxStringLength", p.MaxStringLength, "must not be negative")
	}
	if p.RefreshInterval < 0 {
		bad("panel.refreshInterval", p.RefreshInterval, "must not be negative")
	}
	if p.LineHeightPx <= 0 {
		bad("panel.lineHeightPx", p.LineHeightPx, "must be positive")
	}
	for _, field := range []struct {
		path  string
		color *string
	}{
		{"panel.slowerColor", &p.SlowerColor},
		{"panel.fasterColor", &p.FasterColor},
	} {
		c, err := colorful.Hex(*field.color)
		if err != nil {
			bad(field.path, *field.color, "must be a hex colour like #ff0000")
			continue
		}
		*field.color = c.Hex()
	}

	e := &s.Evaluator
	if len(e.Command) == 0 || strings.TrimSpace(e.Command[0]) == "" {
		bad("evaluator.command", e.Command, "must name an executable")
	}
	if e.Delay < 0 {
		bad("evaluator.delay", e.Delay, "must not be negative")
	}

	switch s.Surface.Kind {
	case "web":
		if s.Surface.Addr == "" {
			bad("surface.addr", s.Surface.Addr, "required for the web surface")
		}
	case "file":
		if s.Surface.Output == "" {
			bad("surface.output", s.Surface.Output, "required for the file surface")
		}
	default:
		bad("surface.kind", s.Surface.Kind, "must be web or file")
	}

	switch strings.ToLower(s.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("logging.level", s.Logging.Level, "must be debug, info, warn or error")
	}

	return errors.Join(errs...)
}
