// Package cached wraps any backend with a read-through LRU object cache.
// Writes pass straight through; Read fills the cache, Has consults it
// before the underlying backend. Objects are immutable, so cached entries
// never go stale.
package cached

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
)

// DefaultSize is the default number of cached objects.
const DefaultSize = 256

type entry struct {
	objType object.ObjectType
	data    []byte
}

// Backend decorates an underlying backend with an LRU cache.
type Backend struct {
	inner odb.Backend
	cache *lru.Cache[object.Hash, entry]
}

// Wrap decorates inner with a cache of the given capacity. A non-positive
// size falls back to DefaultSize.
func Wrap(inner odb.Backend, size int) (*Backend, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[object.Hash, entry](size)
	if err != nil {
		return nil, err
	}
	return &Backend{inner: inner, cache: cache}, nil
}

// Has consults the cache before the underlying backend.
func (b *Backend) Has(h object.Hash) (bool, error) {
	if b.cache.Contains(h) {
		return true, nil
	}
	return b.inner.Has(h)
}

// Read retrieves an object, filling the cache on a backend hit.
func (b *Backend) Read(h object.Hash) (object.ObjectType, []byte, error) {
	if e, ok := b.cache.Get(h); ok {
		out := make([]byte, len(e.data))
		copy(out, e.data)
		return e.objType, out, nil
	}

	objType, data, err := b.inner.Read(h)
	if err != nil {
		return "", nil, err
	}
	b.cache.Add(h, entry{objType: objType, data: append([]byte(nil), data...)})
	return objType, data, nil
}

// Writable mirrors the underlying backend.
func (b *Backend) Writable() bool {
	return b.inner.Writable()
}

// NewWriter passes through to the underlying backend. The finished object
// is not pre-warmed into the cache; the next Read fills it.
func (b *Backend) NewWriter(t object.ObjectType) (odb.WriteHandle, error) {
	return b.inner.NewWriter(t)
}

var _ odb.Backend = (*Backend)(nil)
