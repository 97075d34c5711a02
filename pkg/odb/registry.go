package odb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quarry-vcs/quarry/pkg/object"
)

// Registry holds backends in descending priority order. Higher priority is
// consulted first for both reads and writes; ties keep registration order.
// The list is guarded by a read-mostly lock so registration can overlap
// queries from other goroutines.
type Registry struct {
	mu       sync.RWMutex
	backends []rankedBackend
}

type rankedBackend struct {
	backend  Backend
	priority int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a backend at the given priority. Priority must be a positive
// integer. The backend is inserted after every backend of higher or equal
// priority already registered, so equal priorities resolve in registration
// order.
func (r *Registry) Add(b Backend, priority int) error {
	if b == nil {
		return fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	}
	if priority < 1 {
		return fmt.Errorf("%w: backend priority must be positive, got %d", ErrInvalidArgument, priority)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pos := len(r.backends)
	for i, rb := range r.backends {
		if rb.priority < priority {
			pos = i
			break
		}
	}
	r.backends = append(r.backends, rankedBackend{})
	copy(r.backends[pos+1:], r.backends[pos:])
	r.backends[pos] = rankedBackend{backend: b, priority: priority}
	return nil
}

// Len reports the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// snapshot copies the current ordering so walks don't hold the lock across
// backend I/O.
func (r *Registry) snapshot() []rankedBackend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rankedBackend, len(r.backends))
	copy(out, r.backends)
	return out
}

// Has queries backends in priority order and returns true on the first hit.
// A backend error counts as a miss; the walk continues.
func (r *Registry) Has(h object.Hash) bool {
	for _, rb := range r.snapshot() {
		ok, err := rb.backend.Has(h)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Read retrieves an object, walking backends in priority order. Backend
// failures are treated as misses. If every backend misses, the error wraps
// ErrObjectNotFound.
func (r *Registry) Read(h object.Hash) (object.ObjectType, []byte, error) {
	for _, rb := range r.snapshot() {
		objType, data, err := rb.backend.Read(h)
		if err != nil {
			continue
		}
		return objType, data, nil
	}
	return "", nil, fmt.Errorf("read %s: %w", h, ErrObjectNotFound)
}

// NewWriter opens a streaming write on the highest-priority writable
// backend. There is no write fallback: if that backend's write fails, the
// attempt fails. With no writable backend registered, the error wraps
// ErrNoWritableBackend.
func (r *Registry) NewWriter(t object.ObjectType) (WriteHandle, error) {
	if !object.ValidType(t) {
		return nil, fmt.Errorf("%w: unknown object type %q", ErrInvalidArgument, t)
	}
	for _, rb := range r.snapshot() {
		if !rb.backend.Writable() {
			continue
		}
		wh, err := rb.backend.NewWriter(t)
		if err != nil {
			if errors.Is(err, ErrStorage) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return wh, nil
	}
	return nil, ErrNoWritableBackend
}
