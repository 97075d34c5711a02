package odb

import (
	"bytes"
	"errors"
	"sync"

	"github.com/quarry-vcs/quarry/pkg/object"
)

// fakeBackend is an instrumented in-memory backend for tests. It records
// every Has/Read query in a shared log so ordering assertions can verify
// priority resolution, and can be flipped read-only or failing.
type fakeBackend struct {
	name      string
	mu        sync.Mutex
	objects   map[object.Hash][]byte // envelope-free: stored as type+data
	types     map[object.Hash]object.ObjectType
	readOnly  bool
	failHas   bool
	failRead  bool
	failWrite bool
	log       *queryLog
}

type queryLog struct {
	mu      sync.Mutex
	queries []string
}

func (l *queryLog) record(entry string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, entry)
}

func (l *queryLog) entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.queries))
	copy(out, l.queries)
	return out
}

func newFakeBackend(name string, log *queryLog) *fakeBackend {
	return &fakeBackend{
		name:    name,
		objects: make(map[object.Hash][]byte),
		types:   make(map[object.Hash]object.ObjectType),
		log:     log,
	}
}

var errFakeFailure = errors.New("fake backend failure")

func (b *fakeBackend) Has(h object.Hash) (bool, error) {
	b.log.record(b.name + ":has")
	if b.failHas {
		return false, errFakeFailure
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[h]
	return ok, nil
}

func (b *fakeBackend) Read(h object.Hash) (object.ObjectType, []byte, error) {
	b.log.record(b.name + ":read")
	if b.failRead {
		return "", nil, errFakeFailure
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[h]
	if !ok {
		return "", nil, ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return b.types[h], out, nil
}

func (b *fakeBackend) Writable() bool {
	return !b.readOnly
}

func (b *fakeBackend) NewWriter(t object.ObjectType) (WriteHandle, error) {
	return &fakeWriter{backend: b, objType: t, failWrite: b.failWrite}, nil
}

// put seeds an object directly, bypassing the write path.
func (b *fakeBackend) put(t object.ObjectType, data []byte) object.Hash {
	h := object.HashObject(t, data)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[h] = append([]byte(nil), data...)
	b.types[h] = t
	return h
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type fakeWriter struct {
	backend   *fakeBackend
	objType   object.ObjectType
	buf       bytes.Buffer
	failWrite bool
	done      bool
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if w.failWrite {
		return 0, errFakeFailure
	}
	return w.buf.Write(p)
}

func (w *fakeWriter) Commit() (object.Hash, error) {
	if w.done {
		return "", errors.New("fake writer already finished")
	}
	w.done = true
	return w.backend.put(w.objType, w.buf.Bytes()), nil
}

func (w *fakeWriter) Abort() error {
	w.done = true
	return nil
}

// bareContext is a minimal RepositoryContext for tests.
type bareContext struct {
	bare    bool
	workDir string
}

func (c bareContext) IsBare() bool    { return c.bare }
func (c bareContext) WorkDir() string { return c.workDir }
