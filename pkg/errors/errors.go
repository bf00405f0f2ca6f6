// Package errors provides common domain error types for krisp-import.
//
// This package defines sentinel errors for conditions like "not found" or
// "invalid archive" that can be used across all packages. Using typed errors
// enables consistent error handling patterns with errors.Is() checks.
//
// Usage:
//
//	import kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
//
//	// Return a domain error
//	return nil, fmt.Errorf("open %s: %w", path, kerrors.ErrInvalidArchive)
//
//	// Check for domain errors
//	if kerrors.IsInvalidArchive(err) {
//	    // skip the archive
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested file or note was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a note for the same recording already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates invalid input or configuration.
	ErrValidation = errors.New("validation error")

	// ErrInvalidArchive indicates a file that is not a usable Krisp export.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrEmptyContent indicates an export with neither notes nor transcript.
	ErrEmptyContent = errors.New("empty content")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether any error in err's chain is ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidArchive reports whether any error in err's chain is ErrInvalidArchive.
func IsInvalidArchive(err error) bool {
	return errors.Is(err, ErrInvalidArchive)
}

// IsEmptyContent reports whether any error in err's chain is ErrEmptyContent.
func IsEmptyContent(err error) bool {
	return errors.Is(err, ErrEmptyContent)
}
