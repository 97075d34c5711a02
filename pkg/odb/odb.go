// Package odb implements the content-addressable object database: pluggable
// storage backends with priority-based resolution, streaming content
// ingestion, and atomic construction of trees and commits. It never touches
// a working directory or index; persistence format belongs entirely to the
// registered backends.
package odb

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quarry-vcs/quarry/pkg/object"
)

// RepositoryContext is the surrounding repository the database is scoped to.
// The database only needs to know whether relative-path resolution is
// permitted and, when it is, what to resolve against.
type RepositoryContext interface {
	// IsBare reports whether the repository has no working directory.
	IsBare() bool

	// WorkDir returns the working directory root. Undefined when IsBare.
	WorkDir() string
}

// Blob is a materialized handle to a stored blob.
type Blob struct {
	ID   object.Hash
	Size int64
}

// Tree is a materialized handle to a stored tree.
type Tree struct {
	ID  object.Hash
	Obj *object.TreeObj
}

// Commit is a materialized handle to a stored commit.
type Commit struct {
	ID  object.Hash
	Obj *object.CommitObj
}

// Tag is a materialized handle to a stored annotated tag.
type Tag struct {
	ID  object.Hash
	Obj *object.TagObj
}

// Database is the object database facade. All creation operations resolve
// through the backend registry; every returned entity is looked up from the
// registry after its write, so it reflects backend-confirmed state rather
// than a locally cached guess.
type Database struct {
	registry  *Registry
	repoCtx   RepositoryContext
	chunkSize int
}

// Option configures a Database.
type Option func(*Database)

// WithChunkSize overrides the streaming ingestion buffer size.
func WithChunkSize(n int) Option {
	return func(db *Database) { db.chunkSize = n }
}

// NewDatabase creates an object database scoped to the given repository
// context. Backends are registered separately with AddBackend.
func NewDatabase(repoCtx RepositoryContext, opts ...Option) *Database {
	db := &Database{
		registry:  NewRegistry(),
		repoCtx:   repoCtx,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// AddBackend registers a backend at the given positive priority. Higher
// priority backends are consulted first for reads and writes.
func (db *Database) AddBackend(b Backend, priority int) error {
	return db.registry.Add(b, priority)
}

// Contains reports whether any registered backend holds the object.
func (db *Database) Contains(h object.Hash) bool {
	return db.registry.Has(h)
}

// CreateBlobFromPath streams a file's content into the database. A relative
// path is resolved against the repository working directory; in a bare
// repository there is nothing to resolve against, so relative paths fail
// with ErrInvalidOperation before any backend is touched.
func (db *Database) CreateBlobFromPath(ctx context.Context, path string) (*Blob, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: blob path is required", ErrInvalidArgument)
	}
	if !filepath.IsAbs(path) {
		if db.repoCtx == nil || db.repoCtx.IsBare() {
			return nil, fmt.Errorf("%w: relative path %q in a bare repository", ErrInvalidOperation, path)
		}
		path = filepath.Join(db.repoCtx.WorkDir(), path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSourceRead, path, err)
	}
	defer f.Close()

	h, err := db.writeStream(ctx, object.TypeBlob, f)
	if err != nil {
		return nil, err
	}
	return db.LookupBlob(h)
}

// CreateBlobFromStream ingests blob content from an arbitrary reader in
// bounded chunks. The hint is advisory path metadata for content-filtering
// collaborators; the database itself does not interpret it.
func (db *Database) CreateBlobFromStream(ctx context.Context, src io.Reader, hint string) (*Blob, error) {
	_ = hint
	h, err := db.writeStream(ctx, object.TypeBlob, src)
	if err != nil {
		return nil, err
	}
	return db.LookupBlob(h)
}

// CreateTree materializes a tree definition, writing nested subtrees before
// their parents so every embedded hash exists when it is referenced.
func (db *Database) CreateTree(def *TreeDefinition) (*Tree, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil tree definition", ErrInvalidArgument)
	}
	h, _, err := db.buildTree(def)
	if err != nil {
		return nil, err
	}
	return db.LookupTree(h)
}

// CreateCommit writes a commit referencing one tree and zero or more parent
// commits. An empty parents slice produces a root commit; a nil slice is
// rejected. The message is normalized to end in exactly one newline.
func (db *Database) CreateCommit(message string, author, committer object.Signature, tree *Tree, parents []*Commit) (*Commit, error) {
	return db.CreateCommitWithSigner(message, author, committer, tree, parents, nil)
}

// CreateCommitWithSigner behaves like CreateCommit and additionally signs
// the canonical commit payload when signer is non-nil.
func (db *Database) CreateCommitWithSigner(message string, author, committer object.Signature, tree *Tree, parents []*Commit, signer CommitSigner) (*Commit, error) {
	h, err := db.composeCommit(message, author, committer, tree, parents, signer)
	if err != nil {
		return nil, err
	}
	return db.LookupCommit(h)
}

// CreateTag writes an annotated tag referencing an already-stored object.
func (db *Database) CreateTag(name string, target object.Hash, targetType object.ObjectType, tagger object.Signature, message string) (*Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", ErrInvalidArgument)
	}
	if !object.ValidHash(target) {
		return nil, fmt.Errorf("%w: tag target hash is required", ErrInvalidArgument)
	}
	if !object.ValidType(targetType) {
		return nil, fmt.Errorf("%w: unknown tag target type %q", ErrInvalidArgument, targetType)
	}
	if tagger.IsZero() {
		return nil, fmt.Errorf("%w: tagger is required", ErrInvalidArgument)
	}
	if err := checkIdentity("tagger", tagger); err != nil {
		return nil, err
	}

	tagObj := &object.TagObj{
		TargetHash: target,
		TargetType: targetType,
		Name:       name,
		Tagger:     tagger,
		Message:    object.PrettifyMessage(message),
	}
	h, err := db.writeBytes(object.TypeTag, object.MarshalTag(tagObj))
	if err != nil {
		return nil, err
	}
	return db.LookupTag(h)
}

// readTyped reads an object and checks its type tag.
func (db *Database) readTyped(h object.Hash, want object.ObjectType) ([]byte, error) {
	objType, data, err := db.registry.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}

// LookupBlob materializes a blob handle from a hash.
func (db *Database) LookupBlob(h object.Hash) (*Blob, error) {
	data, err := db.readTyped(h, object.TypeBlob)
	if err != nil {
		return nil, err
	}
	return &Blob{ID: h, Size: int64(len(data))}, nil
}

// ReadBlob returns a blob's content.
func (db *Database) ReadBlob(h object.Hash) (*object.Blob, error) {
	data, err := db.readTyped(h, object.TypeBlob)
	if err != nil {
		return nil, err
	}
	return object.UnmarshalBlob(data)
}

// LookupTree materializes a tree from a hash.
func (db *Database) LookupTree(h object.Hash) (*Tree, error) {
	data, err := db.readTyped(h, object.TypeTree)
	if err != nil {
		return nil, err
	}
	obj, err := object.UnmarshalTree(data)
	if err != nil {
		return nil, err
	}
	return &Tree{ID: h, Obj: obj}, nil
}

// LookupCommit materializes a commit from a hash.
func (db *Database) LookupCommit(h object.Hash) (*Commit, error) {
	data, err := db.readTyped(h, object.TypeCommit)
	if err != nil {
		return nil, err
	}
	obj, err := object.UnmarshalCommit(data)
	if err != nil {
		return nil, err
	}
	return &Commit{ID: h, Obj: obj}, nil
}

// LookupTag materializes a tag from a hash.
func (db *Database) LookupTag(h object.Hash) (*Tag, error) {
	data, err := db.readTyped(h, object.TypeTag)
	if err != nil {
		return nil, err
	}
	obj, err := object.UnmarshalTag(data)
	if err != nil {
		return nil, err
	}
	return &Tag{ID: h, Obj: obj}, nil
}

// Read retrieves a raw object of any type from the registry.
func (db *Database) Read(h object.Hash) (object.ObjectType, []byte, error) {
	return db.registry.Read(h)
}
