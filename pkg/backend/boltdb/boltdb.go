// Package boltdb implements an object backend over a single bbolt file.
// Objects live in one bucket keyed by raw hash bytes, value = envelope.
// bbolt gives transactional visibility for free: an object written inside
// an uncommitted transaction is never observable.
package boltdb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
)

var objectsBucket = []byte("objects")

// Backend stores objects in a bbolt database file.
type Backend struct {
	db *bolt.DB
}

// Open opens (creating if needed) a bbolt-backed object store at path.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db %s: %v", odb.ErrStorage, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(objectsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create objects bucket: %v", odb.ErrStorage, err)
	}
	return &Backend{db: db}, nil
}

// Close releases the database file.
func (b *Backend) Close() error {
	return b.db.Close()
}

func hashKey(h object.Hash) ([]byte, error) {
	raw, err := object.HashToBytes(h)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h, odb.ErrObjectNotFound)
	}
	return raw, nil
}

// Has reports whether the backend holds the object.
func (b *Backend) Has(h object.Hash) (bool, error) {
	key, err := hashKey(h)
	if err != nil {
		return false, nil
	}
	var found bool
	err = b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(objectsBucket).Get(key) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: has %s: %v", odb.ErrStorage, h, err)
	}
	return found, nil
}

// Read retrieves an object by hash.
func (b *Backend) Read(h object.Hash) (object.ObjectType, []byte, error) {
	key, err := hashKey(h)
	if err != nil {
		return "", nil, err
	}
	var envelope []byte
	err = b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get(key)
		if v != nil {
			envelope = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("%w: read %s: %v", odb.ErrStorage, h, err)
	}
	if envelope == nil {
		return "", nil, fmt.Errorf("read %s: %w", h, odb.ErrObjectNotFound)
	}

	objType, content, err := splitEnvelope(envelope)
	if err != nil {
		return "", nil, fmt.Errorf("%w: object %s: %v", odb.ErrStorage, h, err)
	}
	return objType, content, nil
}

func splitEnvelope(envelope []byte) (object.ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(envelope, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("invalid envelope (no NUL)")
	}
	header := string(envelope[:nulIdx])
	typeStr, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("invalid envelope header %q", header)
	}
	objType := object.ObjectType(typeStr)
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid envelope length %q: %w", lenStr, err)
	}
	content := envelope[nulIdx+1:]
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}

// Writable reports that the backend accepts writes.
func (b *Backend) Writable() bool {
	return true
}

// NewWriter starts a buffered object write. bbolt values are whole byte
// slices, so content is buffered in memory and stored in one transaction
// at Commit.
func (b *Backend) NewWriter(t object.ObjectType) (odb.WriteHandle, error) {
	return &writer{backend: b, objType: t}, nil
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

	data := w.buf.Bytes()
	h := object.HashObject(w.objType, data)
	key, err := object.HashToBytes(h)
	if err != nil {
		return "", fmt.Errorf("%w: %v", odb.ErrStorage, err)
	}

	err = w.backend.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(objectsBucket)
		if bucket.Get(key) != nil {
			return nil
		}
		return bucket.Put(key, object.MakeEnvelope(w.objType, data))
	})
	if err != nil {
		return "", fmt.Errorf("%w: store %s: %v", odb.ErrStorage, h, err)
	}
	return h, nil
}

func (w *writer) Abort() error {
	w.done = true
	return nil
}

var _ odb.Backend = (*Backend)(nil)
