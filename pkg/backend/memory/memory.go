// Package memory implements an in-memory object backend. It backs scratch
// databases and tests, and doubles as the lowest-common-denominator
// reference for the backend contract.
package memory

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
)

type stored struct {
	objType object.ObjectType
	data    []byte
}

// Backend is a map-backed object store, safe for concurrent use.
type Backend struct {
	mu      sync.RWMutex
	objects map[object.Hash]stored
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{objects: make(map[object.Hash]stored)}
}

// Has reports whether the backend holds the object.
func (b *Backend) Has(h object.Hash) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[h]
	return ok, nil
}

// Read retrieves an object by hash.
func (b *Backend) Read(h object.Hash) (object.ObjectType, []byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.objects[h]
	if !ok {
		return "", nil, fmt.Errorf("read %s: %w", h, odb.ErrObjectNotFound)
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return s.objType, out, nil
}

// Writable reports that the backend accepts writes.
func (b *Backend) Writable() bool {
	return true
}

// NewWriter starts a buffered object write. The object becomes visible only
// when Commit stores the finished buffer under its hash.
func (b *Backend) NewWriter(t object.ObjectType) (odb.WriteHandle, error) {
	return &writer{backend: b, objType: t}, nil
}

// Len reports the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

type writer struct {
	backend *Backend
	objType object.ObjectType
	buf     bytes.Buffer
	done    bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("%w: write after finish", odb.ErrStorage)
	}
	return w.buf.Write(p)
}

func (w *writer) Commit() (object.Hash, error) {
	if w.done {
		return "", fmt.Errorf("%w: commit after finish", odb.ErrStorage)
	}
	w.done = true
	data := append([]byte(nil), w.buf.Bytes()...)
	h := object.HashObject(w.objType, data)

	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	if _, ok := w.backend.objects[h]; !ok {
		w.backend.objects[h] = stored{objType: w.objType, data: data}
	}
	return h, nil
}

func (w *writer) Abort() error {
	w.done = true
	return nil
}

var _ odb.Backend = (*Backend)(nil)
