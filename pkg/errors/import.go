package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorCode represents a classified import failure.
type ErrorCode string

const (
	CodeInvalidArchive ErrorCode = "invalid_archive"
	CodeEmptyContent   ErrorCode = "empty_content"
	CodeNotFound       ErrorCode = "not_found"
	CodePermission     ErrorCode = "permission_denied"
	CodeDuplicate      ErrorCode = "duplicate"
	CodeCancelled      ErrorCode = "cancelled"
	CodeTimeout        ErrorCode = "timeout"
	CodeIncomplete     ErrorCode = "incomplete_file"
	CodeProcessing     ErrorCode = "processing_error"
)

// Import stages, in the order an archive passes through them.
const (
	StageExtract = "extract"
	StageParse   = "parse"
	StageRender  = "render"
	StageWrite   = "write"
)

// ImportError is a structured error for a single archive that failed to import.
type ImportError struct {
	Code    ErrorCode
	Stage   string
	Source  string
	Message string
	Cause   error
}

func (e *ImportError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Stage, e.Source, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
}

func (e *ImportError) Unwrap() error {
	return e.Cause
}

// ClassifyError wraps err in an *ImportError with a code derived from the
// error chain. Errors that match nothing known get CodeProcessing.
func ClassifyError(err error, stage, source string) *ImportError {
	if err == nil {
		return nil
	}

	var existing *ImportError
	if errors.As(err, &existing) {
		return existing
	}

	ie := &ImportError{
		Stage:   stage,
		Source:  source,
		Message: err.Error(),
		Cause:   err,
	}

	lower := strings.ToLower(ie.Message)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		ie.Code = CodeTimeout
	case errors.Is(err, context.Canceled):
		ie.Code = CodeCancelled
	case errors.Is(err, ErrAlreadyExists):
		ie.Code = CodeDuplicate
	case errors.Is(err, ErrEmptyContent):
		ie.Code = CodeEmptyContent
	case errors.Is(err, fs.ErrPermission):
		ie.Code = CodePermission
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		ie.Code = CodeNotFound
	// A zip still being written reports a truncated central directory.
	case strings.Contains(lower, "unexpected eof"):
		ie.Code = CodeIncomplete
	case errors.Is(err, ErrInvalidArchive), strings.Contains(lower, "not a valid zip"):
		ie.Code = CodeInvalidArchive
	default:
		ie.Code = CodeProcessing
	}

	return ie
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Code == CodeTimeout
	}
	return false
}

// IsErrorRetryable returns true if retrying the same archive later may succeed.
// This function checks the error code using the ErrorCodeRegistry.
func IsErrorRetryable(err error) bool {
	var ie *ImportError
	if errors.As(err, &ie) {
		if info, ok := ErrorCodeRegistry[ie.Code]; ok {
			return info.Retryable
		}
		return false
	}
	return false
}
