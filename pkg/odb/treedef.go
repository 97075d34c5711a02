package odb

import (
	"fmt"

	"github.com/quarry-vcs/quarry/pkg/object"
)

// TreeDefinition is mutable scaffolding for building a tree object. Entries
// either carry an already-resolved target hash or nest a sub-definition that
// is built first. A definition is consumed by one Database.CreateTree call;
// it is not safe for concurrent mutation.
type TreeDefinition struct {
	entries []treeDefEntry
}

type treeDefEntry struct {
	name   string
	mode   string
	isDir  bool
	target object.Hash
	sub    *TreeDefinition
}

// NewTreeDefinition returns an empty definition.
func NewTreeDefinition() *TreeDefinition {
	return &TreeDefinition{}
}

// Add appends an entry pointing at an already-stored object. Blobs become
// file entries with the given mode; trees become directory entries. Name
// collisions and other validation surface at build time.
func (d *TreeDefinition) Add(name string, target object.Hash, t object.ObjectType, mode string) {
	d.entries = append(d.entries, treeDefEntry{
		name:   name,
		mode:   mode,
		isDir:  t == object.TypeTree,
		target: target,
	})
}

// AddBlob appends a regular file entry with the default file mode.
func (d *TreeDefinition) AddBlob(name string, target object.Hash) {
	d.Add(name, target, object.TypeBlob, object.TreeModeFile)
}

// AddTree appends a nested sub-definition and returns it so callers can
// populate it. The subtree is materialized before its parent during build.
func (d *TreeDefinition) AddTree(name string) *TreeDefinition {
	sub := NewTreeDefinition()
	d.entries = append(d.entries, treeDefEntry{
		name:  name,
		isDir: true,
		sub:   sub,
	})
	return sub
}

// Len reports the number of entries at this level.
func (d *TreeDefinition) Len() int {
	return len(d.entries)
}

// validEntryName reports whether a name can appear in a serialized tree.
// Separators and control characters would corrupt the line-oriented format,
// so they are rejected before anything is written. Spaces are fine: the
// name is the last field on its line.
func validEntryName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == '/' || r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// buildTree materializes a definition depth-first post-order: every nested
// sub-definition is written first so its hash exists before the parent's
// content — which embeds child hashes — is serialized.
func (db *Database) buildTree(def *TreeDefinition) (object.Hash, *object.TreeObj, error) {
	seen := make(map[string]struct{}, len(def.entries))
	tree := &object.TreeObj{}

	for _, e := range def.entries {
		if !validEntryName(e.name) {
			return "", nil, fmt.Errorf("%w: bad tree entry name %q", ErrInvalidArgument, e.name)
		}
		if _, dup := seen[e.name]; dup {
			return "", nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, e.name)
		}
		seen[e.name] = struct{}{}

		target := e.target
		if e.sub != nil {
			subHash, _, err := db.buildTree(e.sub)
			if err != nil {
				return "", nil, fmt.Errorf("build subtree %q: %w", e.name, err)
			}
			target = subHash
		} else if !object.ValidHash(target) {
			return "", nil, fmt.Errorf("%w: entry %q has no valid target hash", ErrInvalidArgument, e.name)
		}

		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name:       e.name,
			IsDir:      e.isDir,
			Mode:       e.mode,
			TargetHash: target,
		})
	}

	h, err := db.writeBytes(object.TypeTree, object.MarshalTree(tree))
	if err != nil {
		return "", nil, err
	}
	return h, tree, nil
}
