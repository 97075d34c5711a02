// Package loose stores each object as its own file under a 2-character
// fan-out directory layout: objects/ab/cdef0123... Writes are atomic (temp
// file + rename), so a half-written object is never discoverable. Content
// is optionally zstd-compressed at rest; reads auto-detect compression from
// the frame magic, so stores written with either setting stay readable.
package loose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Backend is a filesystem loose-object store.
type Backend struct {
	root     string
	compress bool
}

// New creates a loose backend rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func New(root string, compress bool) *Backend {
	return &Backend{root: root, compress: compress}
}

func (b *Backend) objectsDir() string {
	return filepath.Join(b.root, "objects")
}

func (b *Backend) objectPath(h object.Hash) string {
	return filepath.Join(b.objectsDir(), string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (b *Backend) Has(h object.Hash) (bool, error) {
	if !object.ValidHash(h) {
		return false, nil
	}
	_, err := os.Stat(b.objectPath(h))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", odb.ErrStorage, h, err)
}

// Read retrieves an object by hash, returning its type and raw content.
func (b *Backend) Read(h object.Hash) (object.ObjectType, []byte, error) {
	if !object.ValidHash(h) {
		return "", nil, fmt.Errorf("read %s: %w", h, odb.ErrObjectNotFound)
	}
	raw, err := os.ReadFile(b.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("read %s: %w", h, odb.ErrObjectNotFound)
		}
		return "", nil, fmt.Errorf("%w: read %s: %v", odb.ErrStorage, h, err)
	}

	if bytes.HasPrefix(raw, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return "", nil, fmt.Errorf("%w: init zstd: %v", odb.ErrStorage, err)
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return "", nil, fmt.Errorf("%w: decompress %s: %v", odb.ErrStorage, h, err)
		}
	}

	objType, content, err := parseEnvelope(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%w: object %s: %v", odb.ErrStorage, h, err)
	}
	return objType, content, nil
}

func parseEnvelope(raw []byte) (object.ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, errors.New("invalid format (no NUL)")
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("invalid header %q", header)
	}
	objType := object.ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid length %q: %w", parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}

// Writable reports that the loose store accepts writes.
func (b *Backend) Writable() bool {
	return true
}

// NewWriter starts a streaming object write. Content is spooled to a temp
// file (the envelope hash needs the content length, which a stream only
// reveals at EOF), then finalized in one bounded-memory pass that hashes
// the envelope and writes the object file, renamed into place atomically.
func (b *Backend) NewWriter(t object.ObjectType) (odb.WriteHandle, error) {
	if err := os.MkdirAll(b.objectsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir objects dir: %v", odb.ErrStorage, err)
	}
	spool, err := os.CreateTemp(b.objectsDir(), ".spool-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create spool file: %v", odb.ErrStorage, err)
	}
	return &writer{backend: b, objType: t, spool: spool}, nil
}

type writer struct {
	backend *Backend
	objType object.ObjectType
	spool   *os.File
	size    int64
	done    bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("%w: write after finish", odb.ErrStorage)
	}
	n, err := w.spool.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w: spool write: %v", odb.ErrStorage, err)
	}
	return n, nil
}

func (w *writer) Commit() (object.Hash, error) {
	if w.done {
		return "", fmt.Errorf("%w: commit after finish", odb.ErrStorage)
	}
	w.done = true
	defer w.discardSpool()

	if _, err := w.spool.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: rewind spool: %v", odb.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(w.backend.objectsDir(), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: create object temp file: %v", odb.ErrStorage, err)
	}
	tmpName := tmp.Name()
	tmpKept := false
	defer func() {
		if !tmpKept {
			_ = os.Remove(tmpName)
		}
	}()

	var out io.Writer = tmp
	var enc *zstd.Encoder
	if w.backend.compress {
		enc, err = zstd.NewWriter(tmp)
		if err != nil {
			_ = tmp.Close()
			return "", fmt.Errorf("%w: init zstd: %v", odb.ErrStorage, err)
		}
		out = enc
	}

	header := fmt.Sprintf("%s %d\x00", w.objType, w.size)
	hasher := object.NewObjectHasher(w.objType, w.size)
	if _, err := io.WriteString(out, header); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("%w: write header: %v", odb.ErrStorage, err)
	}
	if _, err := io.Copy(io.MultiWriter(out, hasher), w.spool); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("%w: copy content: %v", odb.ErrStorage, err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			_ = tmp.Close()
			return "", fmt.Errorf("%w: finish compression: %v", odb.ErrStorage, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close object temp file: %v", odb.ErrStorage, err)
	}

	h := object.SumHash(hasher)

	// Fast path: already present. Content-addressing makes the rewrite a
	// no-op, so keep the existing file.
	if ok, _ := w.backend.Has(h); ok {
		return h, nil
	}

	dir := filepath.Join(w.backend.objectsDir(), string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir fanout: %v", odb.ErrStorage, err)
	}
	if err := os.Rename(tmpName, w.backend.objectPath(h)); err != nil {
		return "", fmt.Errorf("%w: rename object: %v", odb.ErrStorage, err)
	}
	tmpKept = true
	return h, nil
}

func (w *writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.discardSpool()
	return nil
}

func (w *writer) discardSpool() {
	name := w.spool.Name()
	_ = w.spool.Close()
	_ = os.Remove(name)
}

// List returns the hashes of all loose objects, sorted.
func (b *Backend) List() ([]object.Hash, error) {
	fanoutDirs, err := os.ReadDir(b.objectsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read objects dir: %v", odb.ErrStorage, err)
	}

	hashes := make([]object.Hash, 0)
	for _, fanoutDir := range fanoutDirs {
		if !fanoutDir.IsDir() {
			continue
		}
		prefix := fanoutDir.Name()
		if len(prefix) != 2 || !isHexComponent(prefix) {
			continue
		}

		entries, err := os.ReadDir(filepath.Join(b.objectsDir(), prefix))
		if err != nil {
			return nil, fmt.Errorf("%w: read fanout %s: %v", odb.ErrStorage, prefix, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			suffix := entry.Name()
			if len(suffix) != 62 || !isHexComponent(suffix) {
				continue
			}
			hashes = append(hashes, object.Hash(prefix+suffix))
		}
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes, nil
}

// Remove deletes a loose object. Used after the object has been migrated
// into a pack.
func (b *Backend) Remove(h object.Hash) error {
	if !object.ValidHash(h) {
		return fmt.Errorf("%w: malformed hash %q", odb.ErrStorage, h)
	}
	if err := os.Remove(b.objectPath(h)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", odb.ErrStorage, h, err)
	}
	return nil
}

func isHexComponent(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return len(s) > 0
}

var _ odb.Backend = (*Backend)(nil)
