package errors

import (
	"fmt"
	"time"
)

// Error types for the quer scan engine
type ErrorType string

const (
	// Enumeration errors
	ErrorTypeWalk ErrorType = "walk"

	// Per-file scan errors
	ErrorTypeFileScan ErrorType = "file_scan"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// WalkError represents a per-path enumeration failure (permission denied,
// broken link). It never aborts a scan; the walker reports it as a
// diagnostic and keeps going.
type WalkError struct {
	Type       ErrorType
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewWalkError creates a walk error for a single offending path
func NewWalkError(path string, err error) *WalkError {
	return &WalkError{
		Type:       ErrorTypeWalk,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *WalkError) Error() string {
	return fmt.Sprintf("walk failed for %s: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *WalkError) Unwrap() error {
	return e.Underlying
}

// FileScanError represents a per-file read or scan failure (unreadable,
// disappeared mid-scan). The file is excluded from results for this run;
// the rest of the scan continues.
type FileScanError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileScanError creates a scan error with the failing operation attached
func NewFileScanError(path, op string, err error) *FileScanError {
	return &FileScanError{
		Type:       ErrorTypeFileScan,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileScanError) Error() string {
	return fmt.Sprintf("scan %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileScanError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration validation failure
type ConfigError struct {
	Type       ErrorType
	Section    string
	Field      string
	Underlying error
}

// NewConfigError creates a new configuration error
func NewConfigError(section, field string, err error) *ConfigError {
	return &ConfigError{
		Type:       ErrorTypeConfig,
		Section:    section,
		Field:      field,
		Underlying: err,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s.%s: %v", e.Section, e.Field, e.Underlying)
	}
	return fmt.Sprintf("config %s: %v", e.Section, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}
