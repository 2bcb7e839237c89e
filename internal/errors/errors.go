// Package errors provides coded domain errors shared across the server.
//
// Services return typed errors:
//
//	if len(p.entries) >= p.max {
//	    return errors.PinRejectedFull(p.max)
//	}
//
// Callers branch with errors.Is against the sentinels, or switch on the
// Code after errors.As for API status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export the standard helpers so callers need one import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code is a machine-readable error class.
type Code string

const (
	// Import pipeline.
	CodeArchiveCorrupt    Code = "ARCHIVE_CORRUPT"
	CodeArchiveTooLarge   Code = "ARCHIVE_TOO_LARGE"
	CodeFileExtractFailed Code = "FILE_EXTRACT_FAILED"
	CodeParseFailed       Code = "PARSE_FAILED"
	CodeIndexWriteFailed  Code = "INDEX_WRITE_FAILED"

	// Pin cache.
	CodePinRejectedFull      Code = "PIN_REJECTED_FULL"
	CodePinRejectedDuplicate Code = "PIN_REJECTED_DUPLICATE"
	CodePinNotFound          Code = "PIN_NOT_FOUND"

	// Render cache.
	CodeRenderFailed Code = "RENDER_FAILED"

	// Ambient.
	CodeNotFound   Code = "NOT_FOUND"
	CodeValidation Code = "VALIDATION"
	CodeConflict   Code = "CONFLICT"
	CodeInternal   Code = "INTERNAL"
)

// HTTPStatus maps an error class onto a response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodePinNotFound:
		return http.StatusNotFound
	case CodePinRejectedFull, CodePinRejectedDuplicate, CodeConflict:
		return http.StatusConflict
	case CodeValidation, CodeArchiveCorrupt:
		return http.StatusBadRequest
	case CodeArchiveTooLarge:
		return http.StatusInsufficientStorage
	case CodeRenderFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a code, a human message, optional structured details, and
// an optional wrapped cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code, so sentinels work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the response status for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy carrying structured details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// Sentinels for errors.Is checks.
var (
	ErrArchiveCorrupt       = &Error{Code: CodeArchiveCorrupt, Message: "archive corrupt"}
	ErrArchiveTooLarge      = &Error{Code: CodeArchiveTooLarge, Message: "not enough free space for archive"}
	ErrFileExtractFailed    = &Error{Code: CodeFileExtractFailed, Message: "file extraction failed"}
	ErrParseFailed          = &Error{Code: CodeParseFailed, Message: "path parse failed"}
	ErrIndexWriteFailed     = &Error{Code: CodeIndexWriteFailed, Message: "index write failed"}
	ErrPinRejectedFull      = &Error{Code: CodePinRejectedFull, Message: "pin list full"}
	ErrPinRejectedDuplicate = &Error{Code: CodePinRejectedDuplicate, Message: "chart already pinned"}
	ErrPinNotFound          = &Error{Code: CodePinNotFound, Message: "chart not pinned"}
	ErrRenderFailed         = &Error{Code: CodeRenderFailed, Message: "render failed"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation           = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict             = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal             = &Error{Code: CodeInternal, Message: "internal error"}
)

// ArchiveCorrupt marks a package that cannot be opened or fails container
// checks. Fatal for the import; the previous index stays active.
func ArchiveCorrupt(msg string) *Error {
	return &Error{Code: CodeArchiveCorrupt, Message: msg}
}

// ArchiveCorruptf is ArchiveCorrupt with a formatted message.
func ArchiveCorruptf(format string, args ...any) *Error {
	return &Error{Code: CodeArchiveCorrupt, Message: fmt.Sprintf(format, args...)}
}

// ArchiveTooLarge marks a package the data volume cannot hold.
func ArchiveTooLarge(need, free uint64) *Error {
	return &Error{
		Code:    CodeArchiveTooLarge,
		Message: fmt.Sprintf("archive needs %d bytes, %d free", need, free),
	}
}

// FileExtractFailed records a single entry that could not be extracted.
// Recoverable; the job continues.
func FileExtractFailed(entry string, cause error) *Error {
	return &Error{
		Code:    CodeFileExtractFailed,
		Message: fmt.Sprintf("extract %s", entry),
		cause:   cause,
	}
}

// ParseFailed records a path that does not follow the airport/category
// layout. Recoverable; the file is skipped.
func ParseFailed(path, reason string) *Error {
	return &Error{
		Code:    CodeParseFailed,
		Message: fmt.Sprintf("parse %s: %s", path, reason),
	}
}

// IndexWriteFailed wraps a failure to persist the catalog index.
func IndexWriteFailed(cause error) *Error {
	return &Error{Code: CodeIndexWriteFailed, Message: "persist catalog index", cause: cause}
}

// PinRejectedFull signals the pin list is at its configured maximum.
func PinRejectedFull(max int) *Error {
	return &Error{
		Code:    CodePinRejectedFull,
		Message: fmt.Sprintf("pin list full (max %d)", max),
	}
}

// PinRejectedDuplicate signals the chart is already pinned.
func PinRejectedDuplicate(chartID string) *Error {
	return &Error{
		Code:    CodePinRejectedDuplicate,
		Message: fmt.Sprintf("chart %s already pinned", chartID),
	}
}

// PinNotFound signals an unpin for a chart that is not on the list.
func PinNotFound(chartID string) *Error {
	return &Error{
		Code:    CodePinNotFound,
		Message: fmt.Sprintf("chart %s not pinned", chartID),
	}
}

// RenderFailed wraps a render backend failure. No cache entry is written.
func RenderFailed(path string, cause error) *Error {
	return &Error{
		Code:    CodeRenderFailed,
		Message: fmt.Sprintf("render %s", path),
		cause:   cause,
	}
}

// NotFound creates a generic not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a generic not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error carrying field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflictf creates a conflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf attaches a code and formatted message to an underlying error.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
