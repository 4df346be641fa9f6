package storage

import "errors"

// Logical outcomes are distinguished from connectivity failures so callers
// can treat duplicates as normal and ErrUnavailable as transient.
var (
	// ErrDuplicateSlug reports that an article with the same slug already
	// exists in the category's collection. This is an expected outcome of
	// the dedupe policy, not a fault.
	ErrDuplicateSlug = errors.New("article with this slug already exists")

	// ErrNotFound reports the logical absence of a requested entity.
	ErrNotFound = errors.New("not found")

	// ErrUnknownCategory reports a category outside the fixed set.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnavailable reports that the underlying store could not be
	// reached or failed unexpectedly. Callers should treat it as
	// transient and retryable.
	ErrUnavailable = errors.New("storage unavailable")
)
