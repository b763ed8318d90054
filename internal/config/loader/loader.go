// Package loader reads configuration layers into plain maps.
//
// Each loader returns a nested map[string]any keyed by setting section and
// name. Layers are combined with DeepMerge; typed decoding and validation
// happen in the config package.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader reads one configuration layer.
type Loader interface {
	// Load returns the layer's settings, or nil, nil if the source does
	// not exist.
	Load() (map[string]any, error)
}

// ForFile returns the loader for path, chosen by extension. Files ending
// in .yaml or .yml are YAML; everything else is TOML.
func ForFile(path string) Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLLoader(path)
	default:
		return NewTOMLLoader(path)
	}
}

// readFile reads path, mapping a missing file to nil data.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return data, nil
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
