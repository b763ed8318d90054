// Package config loads LiveCode settings.
//
// Settings are layered, lowest to highest: built-in defaults, the user
// settings file, the project settings file, environment variables, then
// command-line overrides. Layers are deep-merged as maps, decoded into a
// typed Settings value and validated. A Manager reloads the files when
// they change and notifies subscribers.
package config

import (
	"time"
)

// Settings is the complete, validated configuration.
type Settings struct {
	Panel     PanelSettings     `mapstructure:"panel"`
	Evaluator EvaluatorSettings `mapstructure:"evaluator"`
	Surface   SurfaceSettings   `mapstructure:"surface"`
	Logging   LoggingSettings   `mapstructure:"logging"`
}

// PanelSettings configures document composition and update throttling.
type PanelSettings struct {
	// PrintResultPlacement is "top" or "bottom".
	PrintResultPlacement string `mapstructure:"printResultPlacement"`

	// ShowFooter is accepted but has no effect on output.
	ShowFooter bool `mapstructure:"showFooter"`

	ShowToLevel     int `mapstructure:"showToLevel"`
	MaxStringLength int `mapstructure:"maxStringLength"`

	// RefreshInterval is the minimum time between renders. Zero renders
	// on every update. Bare numbers are milliseconds.
	RefreshInterval time.Duration `mapstructure:"refreshInterval"`

	LineHeightPx int    `mapstructure:"lineHeightPx"`
	CustomCSS    string `mapstructure:"customCSS"`

	// SlowerColor and FasterColor are hex colours, normalised to #rrggbb.
	SlowerColor string `mapstructure:"slowerColor"`
	FasterColor string `mapstructure:"fasterColor"`
}

// EvaluatorSettings configures the evaluator process.
type EvaluatorSettings struct {
	Command            []string      `mapstructure:"command"`
	ShowGlobalVars     bool          `mapstructure:"showGlobalVars"`
	DefaultFilterVars  []string      `mapstructure:"defaultFilterVars"`
	DefaultFilterTypes []string      `mapstructure:"defaultFilterTypes"`
	RuntimeName        string        `mapstructure:"runtimeName"`
	DownloadURL        string        `mapstructure:"downloadURL"`
	Delay              time.Duration `mapstructure:"delay"`
}

// SurfaceSettings selects and configures the panel host.
type SurfaceSettings struct {
	// Kind is "web" or "file".
	Kind   string `mapstructure:"kind"`
	Addr   string `mapstructure:"addr"`
	Output string `mapstructure:"output"`
}

// LoggingSettings configures logging.
type LoggingSettings struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Defaults returns the built-in settings layer.
func Defaults() map[string]any {
	return map[string]any{
		"panel": map[string]any{
			"printResultPlacement": "top",
			"showFooter":           false,
			"showToLevel":          int64(2),
			"maxStringLength":      int64(70),
			"refreshInterval":      50 * time.Millisecond,
			"lineHeightPx":         int64(19),
			"customCSS":            "",
			"slowerColor":          "#ff0000",
			"fasterColor":          "#008000",
		},
		"evaluator": map[string]any{
			"command":            []any{"python3", "-u", "arepl_python_evaluator.py"},
			"showGlobalVars":     true,
			"defaultFilterVars":  []any{},
			"defaultFilterTypes": []any{},
			"runtimeName":        "python 3",
			"downloadURL":        "https://www.python.org/downloads/",
			"delay":              300 * time.Millisecond,
		},
		"surface": map[string]any{
			"kind":   "web",
			"addr":   "127.0.0.1:8421",
			"output": "livecode.html",
		},
		"logging": map[string]any{
			"level": "info",
			"file":  "",
		},
	}
}
