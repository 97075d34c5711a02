package odb

import "errors"

var (
	// ErrInvalidArgument reports a local precondition violation: a missing
	// required input, a non-positive priority, or an invalid object type.
	ErrInvalidArgument = errors.New("odb: invalid argument")

	// ErrInvalidOperation reports an operation that is not permitted in the
	// current repository context, such as a relative blob path in a bare
	// repository.
	ErrInvalidOperation = errors.New("odb: invalid operation")

	// ErrDuplicateEntry reports two sibling tree entries sharing a name.
	ErrDuplicateEntry = errors.New("odb: duplicate tree entry")

	// ErrNoWritableBackend reports a write attempt with no registered
	// backend accepting writes.
	ErrNoWritableBackend = errors.New("odb: no writable backend")

	// ErrObjectNotFound reports a hash that no registered backend holds.
	ErrObjectNotFound = errors.New("odb: object not found")

	// ErrSourceRead reports a failure reading from a caller-supplied
	// content source. The in-flight ingestion is aborted.
	ErrSourceRead = errors.New("odb: content source read failed")

	// ErrStorage reports a backend read or write failure. Reads treat it as
	// a miss and continue down the priority list; writes fail the attempt.
	ErrStorage = errors.New("odb: backend storage failure")
)
