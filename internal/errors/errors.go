// Package errors provides a structured error type hierarchy for flowdex.
//
// This package defines base error types for the catalog, table and download
// layers, wrapped error types that add contextual information, and helper
// functions for error wrapping and type checking.
//
// # Error Types
//
// Base errors (sentinel errors):
//   - ErrNotFound - resource not found
//   - ErrInvalid - validation failed or malformed input
//   - ErrForbidden - access denied (e.g. path escapes the download root)
//   - ErrUnavailable - remote table store unreachable or timed out
//   - ErrRejected - remote table store refused the query
//   - ErrSuperseded - a newer catalog load replaced this one
//   - ErrIO - file I/O error
//   - ErrCanceled - operation canceled
//
// Wrapped error types (add context):
//   - CatalogError{Op, Table, Err} - catalog load and table operations
//   - DownloadError{Op, Path, Err} - download resolution
//   - ConfigError{Path, Err} - configuration errors
//
// # Usage
//
//	return &errors.CatalogError{Op: "load", Table: "categories", Err: errors.ErrUnavailable}
//
//	if errors.IsForbidden(err) {
//	    // respond with access denied
//	}
package errors

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = baseError("not found")

	// ErrInvalid indicates validation failed.
	ErrInvalid = baseError("invalid")

	// ErrForbidden indicates access to a resource was denied.
	ErrForbidden = baseError("access denied")

	// ErrUnavailable indicates the table store could not be reached.
	ErrUnavailable = baseError("unavailable")

	// ErrRejected indicates the table store rejected a query.
	ErrRejected = baseError("rejected")

	// ErrSuperseded indicates a newer catalog load replaced this one.
	ErrSuperseded = baseError("superseded")

	// ErrIO indicates a file I/O error.
	ErrIO = baseError("I/O error")

	// ErrCanceled indicates the operation was canceled.
	ErrCanceled = baseError("canceled")
)

// baseError is a string that implements error.
type baseError string

func (e baseError) Error() string { return string(e) }

// CatalogError represents an error that occurred while loading the catalog
// or talking to the table store.
type CatalogError struct {
	// Op is the operation being performed (e.g., "load", "select", "insert").
	Op string
	// Table is the table involved (optional).
	Table string
	// Err is the underlying error.
	Err error
}

func (e *CatalogError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("catalog %s %q: %s", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("catalog %s: %s", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// DownloadError represents an error that occurred while resolving a download.
type DownloadError struct {
	// Op is the operation being performed (e.g., "resolve", "read", "save").
	Op string
	// Path is the requested file path (optional).
	Path string
	// Err is the underlying error.
	Err error
}

func (e *DownloadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("download %s %q: %s", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("download %s: %s", e.Op, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ConfigError represents an error related to configuration.
type ConfigError struct {
	// Path is the configuration file path (optional).
	Path string
	// Err is the underlying error.
	Err error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Wrap adds context to an error by wrapping it with an operation name.
// The returned error implements Unwrap() allowing errors.Is and errors.As
// to work with the wrapped error.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{op: op, err: err}
}

// wrappedError is an error with an operation context.
type wrappedError struct {
	op  string
	err error
}

func (e *wrappedError) Error() string { return fmt.Sprintf("%s: %s", e.op, e.err) }
func (e *wrappedError) Unwrap() error { return e.err }

// Mark returns an error that matches both sentinel and cause with errors.Is.
// It is used to classify a low-level error (for example a net.Error) under
// one of the base errors without losing it.
func Mark(cause error, sentinel error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalid reports whether err is or wraps ErrInvalid.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsForbidden reports whether err is or wraps ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnavailable reports whether err is or wraps ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsRejected reports whether err is or wraps ErrRejected.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsSuperseded reports whether err is or wraps ErrSuperseded.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

// IsIO reports whether err is or wraps ErrIO.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsCanceled reports whether err is or wraps ErrCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// AsCatalogError reports whether err can be typed as a *CatalogError.
func AsCatalogError(err error) (*CatalogError, bool) {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsDownloadError reports whether err can be typed as a *DownloadError.
func AsDownloadError(err error) (*DownloadError, bool) {
	var de *DownloadError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// AsConfigError reports whether err can be typed as a *ConfigError.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
