package odb

import (
	"io"

	"github.com/quarry-vcs/quarry/pkg/object"
)

// Backend is the raw storage contract a provider implements. Providers are
// registered with the database in priority order; the database never assumes
// anything about the storage medium beyond this interface.
//
// A backend must never leave a half-written object discoverable: until a
// WriteHandle's Commit returns, the object must not be visible to Has or
// Read on the same backend.
type Backend interface {
	// Has reports whether the backend holds an object with the given hash.
	Has(h object.Hash) (bool, error)

	// Read retrieves an object by hash, returning its type and content.
	// A missing object is an error wrapping ErrObjectNotFound.
	Read(h object.Hash) (object.ObjectType, []byte, error)

	// Writable reports whether the backend accepts writes.
	Writable() bool

	// NewWriter starts a streaming write of one object of the given type.
	// The caller streams content through the handle and finalizes with
	// Commit, or discards with Abort.
	NewWriter(t object.ObjectType) (WriteHandle, error)
}

// WriteHandle is an in-flight object write. Exactly one of Commit or Abort
// must be called. Commit derives the content hash from everything written
// and makes the object resolvable under it.
type WriteHandle interface {
	io.Writer

	// Commit finalizes the write and returns the object's hash.
	Commit() (object.Hash, error)

	// Abort discards the write, leaving nothing resolvable.
	Abort() error
}
