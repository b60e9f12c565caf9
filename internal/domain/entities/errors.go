package entities

import "errors"

// Error categories. Callers wrap these with context and test with errors.Is.
var (
	// ErrValidation means a timestamp, entity id or operation is malformed.
	ErrValidation = errors.New("validation error")
	// ErrNotFound means the requested revision or snapshot does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStorage means the durable medium failed, including duplicate-timestamp conflicts.
	ErrStorage = errors.New("storage error")
	// ErrFormat means aligner input is not a well-formed unified diff.
	ErrFormat = errors.New("format error")
	// ErrAccessDenied means the caller may not read the entity's history.
	ErrAccessDenied = errors.New("access denied")
)
