// Package errors provides the structured error hierarchy for clickflow.
//
// Base errors are sentinels that callers test with errors.Is. Wrapped error
// types add the operation and the subject (template name, file path, workflow
// id) so the interactive layer can report something actionable.
//
// # Error Types
//
// Base errors (sentinel errors):
//   - ErrNotFound - template or workflow not found
//   - ErrAlreadyExists - duplicate resource
//   - ErrInvalid - validation failed
//   - ErrIO - file I/O error
//   - ErrCanceled - user canceled operation
//   - ErrNotRecording - recorder is idle
//   - ErrAborted - the fail-safe fired
//   - ErrBusy - a run or recording is already in progress
//   - ErrMatch - screen capture or template match failed
//
// Wrapped error types (add context):
//   - TemplateError{Op, Name, Err} - template operations
//   - StorageError{Op, Path, Err} - filesystem failures on templates and workflows
//   - MatchError{Op, Err} - capture, match and click primitive failures
//   - WorkflowError{Op, ID, Err} - workflow operations
//   - ConfigError{Path, Err} - configuration errors
//
// # Usage
//
//	return &errors.TemplateError{Op: "locate", Name: "submit.png", Err: errors.ErrNotFound}
//
//	if errors.IsNotFound(err) {
//	    // handle not found
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

	// ErrAlreadyExists indicates a duplicate resource.
	ErrAlreadyExists = baseError("already exists")

	// ErrInvalid indicates validation failed.
	ErrInvalid = baseError("invalid")

	// ErrIO indicates a file I/O error.
	ErrIO = baseError("I/O error")

	// ErrCanceled indicates the user canceled an operation.
	ErrCanceled = baseError("canceled")

	// ErrNotRecording indicates a step was added while the recorder is idle.
	ErrNotRecording = baseError("not recording")

	// ErrAborted indicates the fail-safe stopped the operation.
	ErrAborted = baseError("aborted by fail-safe")

	// ErrBusy indicates an operation is already in progress.
	ErrBusy = baseError("busy")

	// ErrMatch indicates the capture or match primitive failed.
	ErrMatch = baseError("capture or match failed")
)

// baseError is a string that implements error.
type baseError string

func (e baseError) Error() string { return string(e) }

// TemplateError represents an error on a named template.
type TemplateError struct {
	// Op is the operation being performed (e.g., "locate", "save", "delete").
	Op string
	// Name is the template file name.
	Name string
	// Err is the underlying error.
	Err error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s %q: %s", e.Op, e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// StorageError represents a filesystem failure.
type StorageError struct {
	// Op is the storage operation (e.g., "save", "delete", "load").
	Op string
	// Path is the file or directory involved.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MatchError represents a failure of the capture, match, or click primitive.
// It always satisfies errors.Is(err, ErrMatch).
type MatchError struct {
	// Op is the primitive that failed ("capture", "match", "click").
	Op string
	// Err is the underlying error.
	Err error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Err)
}

func (e *MatchError) Unwrap() []error { return []error{ErrMatch, e.Err} }

// WorkflowError represents an error that occurred during a workflow operation.
type WorkflowError struct {
	// Op is the operation being performed (e.g., "save", "run", "delete").
	Op string
	// Err is the underlying error.
	Err error
	// ID is the workflow name (optional).
	ID string
}

func (e *WorkflowError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("workflow %s %q: %s", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("workflow %s: %s", e.Op, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

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

// Invalidf returns an error wrapping ErrInvalid with a formatted detail.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is or wraps ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalid reports whether err is or wraps ErrInvalid.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsIO reports whether err is or wraps ErrIO.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsCanceled reports whether err is or wraps ErrCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsNotRecording reports whether err is or wraps ErrNotRecording.
func IsNotRecording(err error) bool {
	return errors.Is(err, ErrNotRecording)
}

// IsAborted reports whether err is or wraps ErrAborted.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// IsBusy reports whether err is or wraps ErrBusy.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsMatch reports whether err is or wraps ErrMatch.
func IsMatch(err error) bool {
	return errors.Is(err, ErrMatch)
}

// AsTemplateError reports whether err can be typed as a *TemplateError.
func AsTemplateError(err error) (*TemplateError, bool) {
	var te *TemplateError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// AsStorageError reports whether err can be typed as a *StorageError.
func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsWorkflowError reports whether err can be typed as a *WorkflowError.
func AsWorkflowError(err error) (*WorkflowError, bool) {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we, true
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
