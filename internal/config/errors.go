package config

import (
	"errors"
	"fmt"

	"github.com/dshills/livecode/internal/config/loader"
)

// Errors returned by configuration operations.
var (
	// ErrInvalidSetting indicates a setting value failed validation.
	ErrInvalidSetting = errors.New("invalid setting")

	// ErrManagerClosed indicates the manager has been closed.
	ErrManagerClosed = errors.New("config manager closed")
)

// ParseError represents an error while parsing a configuration file.
type ParseError = loader.ParseError

// ValidationError describes a validation failure for one setting.
type ValidationError struct {
	// Path is the setting path that failed validation.
	Path string
	// Value is the invalid value.
	Value any
	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Path, e.Message, e.Value)
}

// Unwrap lets errors.Is match ErrInvalidSetting.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidSetting
}
