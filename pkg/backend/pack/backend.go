package pack

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
)

// Backend is a read-only object backend over a directory of pack/index
// pairs (pack-<checksum>.pack / .idx). Indexes are loaded at Open and on
// Rescan; pack payloads are read on demand at their indexed offsets.
type Backend struct {
	dir string

	mu    sync.RWMutex
	packs []*openPack
}

type openPack struct {
	idx      *Index
	packPath string
}

// Open loads all pack indexes under dir. A missing directory is an empty
// backend, not an error: packs appear after the first repack.
func Open(dir string) (*Backend, error) {
	b := &Backend{dir: dir}
	if err := b.Rescan(); err != nil {
		return nil, err
	}
	return b, nil
}

// Dir returns the pack directory.
func (b *Backend) Dir() string {
	return b.dir
}

// Rescan reloads the set of pack indexes, picking up newly written packs.
func (b *Backend) Rescan() error {
	idxPaths, err := listIndexPaths(b.dir)
	if err != nil {
		return err
	}

	packs := make([]*openPack, 0, len(idxPaths))
	for _, idxPath := range idxPaths {
		data, err := os.ReadFile(idxPath)
		if err != nil {
			return fmt.Errorf("%w: read pack index %s: %v", odb.ErrStorage, filepath.Base(idxPath), err)
		}
		idx, err := ReadIndex(data)
		if err != nil {
			return fmt.Errorf("%w: parse pack index %s: %v", odb.ErrStorage, filepath.Base(idxPath), err)
		}
		packs = append(packs, &openPack{
			idx:      idx,
			packPath: strings.TrimSuffix(idxPath, ".idx") + ".pack",
		})
	}

	b.mu.Lock()
	b.packs = packs
	b.mu.Unlock()
	return nil
}

func listIndexPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read pack dir: %v", odb.ErrStorage, err)
	}

	idxPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}
		idxPaths = append(idxPaths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(idxPaths)
	return idxPaths, nil
}

func (b *Backend) snapshot() []*openPack {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*openPack, len(b.packs))
	copy(out, b.packs)
	return out
}

// Has reports whether any loaded index lists the hash.
func (b *Backend) Has(h object.Hash) (bool, error) {
	for _, p := range b.snapshot() {
		if _, ok := p.idx.Find(h); ok {
			return true, nil
		}
	}
	return false, nil
}

// PackedHashes returns every hash listed by any loaded index.
func (b *Backend) PackedHashes() map[object.Hash]struct{} {
	out := make(map[object.Hash]struct{})
	for _, p := range b.snapshot() {
		for _, entry := range p.idx.Entries() {
			out[entry.Hash] = struct{}{}
		}
	}
	return out
}

// Read retrieves an object from the pack holding it, verifying the content
// hash against the requested one.
func (b *Backend) Read(h object.Hash) (object.ObjectType, []byte, error) {
	for _, p := range b.snapshot() {
		entry, ok := p.idx.Find(h)
		if !ok {
			continue
		}
		return readEntry(p.packPath, h, entry.Offset)
	}
	return "", nil, fmt.Errorf("read %s: %w", h, odb.ErrObjectNotFound)
}

// maxEntryHeaderSize bounds the bytes needed to decode any entry header.
const maxEntryHeaderSize = 32

func readEntry(packPath string, h object.Hash, offset uint64) (object.ObjectType, []byte, error) {
	f, err := os.Open(packPath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: open pack %s: %v", odb.ErrStorage, filepath.Base(packPath), err)
	}
	defer f.Close()

	headerBuf := make([]byte, maxEntryHeaderSize)
	n, err := f.ReadAt(headerBuf, int64(offset))
	if err != nil && err != io.EOF {
		return "", nil, fmt.Errorf("%w: read pack entry header: %v", odb.ErrStorage, err)
	}
	et, size, compressedSize, consumed, err := decodeEntryHeader(headerBuf[:n])
	if err != nil {
		return "", nil, fmt.Errorf("%w: pack %s offset %d: %v", odb.ErrStorage, filepath.Base(packPath), offset, err)
	}

	compressed := make([]byte, compressedSize)
	if _, err := f.ReadAt(compressed, int64(offset)+int64(consumed)); err != nil {
		return "", nil, fmt.Errorf("%w: read pack entry payload: %v", odb.ErrStorage, err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: init zstd: %v", odb.ErrStorage, err)
	}
	defer dec.Close()
	content, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: decompress pack entry: %v", odb.ErrStorage, err)
	}
	if uint64(len(content)) != size {
		return "", nil, fmt.Errorf("%w: pack entry size mismatch (header=%d, actual=%d)", odb.ErrStorage, size, len(content))
	}

	objType, err := fromEntryType(et)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", odb.ErrStorage, err)
	}
	if computed := object.HashObject(objType, content); computed != h {
		return "", nil, fmt.Errorf("%w: packed object hash mismatch: expected %s, computed %s", odb.ErrStorage, h, computed)
	}
	return objType, content, nil
}

// Writable reports that packs never accept direct writes; objects enter
// packs only through repacking.
func (b *Backend) Writable() bool {
	return false
}

// NewWriter always fails: the pack backend is read-only.
func (b *Backend) NewWriter(object.ObjectType) (odb.WriteHandle, error) {
	return nil, fmt.Errorf("%w: pack backend is read-only", odb.ErrStorage)
}

// VerifySummary reports the outcome of Verify.
type VerifySummary struct {
	PackFiles   int
	PackObjects int
}

// Verify re-reads every indexed object, checking entry hashes, pack
// trailer checksums, and idx/pack cross-references.
func (b *Backend) Verify() (*VerifySummary, error) {
	report := &VerifySummary{}
	for _, p := range b.snapshot() {
		packData, err := os.ReadFile(p.packPath)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", filepath.Base(p.packPath), err)
		}
		if len(packData) < packHeaderSize+32 {
			return nil, fmt.Errorf("verify pack %s: truncated", filepath.Base(p.packPath))
		}

		header, err := parsePackHeader(packData)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", filepath.Base(p.packPath), err)
		}

		trailer := packData[len(packData)-32:]
		computed := sha256.Sum256(packData[:len(packData)-32])
		if !bytes.Equal(trailer, computed[:]) {
			return nil, fmt.Errorf("verify pack %s: trailer checksum mismatch", filepath.Base(p.packPath))
		}

		entries := p.idx.Entries()
		if len(entries) != int(header.numObjects) {
			return nil, fmt.Errorf(
				"verify pack %s: idx entry count %d does not match pack object count %d",
				filepath.Base(p.packPath), len(entries), header.numObjects,
			)
		}
		for _, entry := range entries {
			if _, _, err := readEntry(p.packPath, entry.Hash, entry.Offset); err != nil {
				return nil, fmt.Errorf("verify pack %s hash %s: %w", filepath.Base(p.packPath), entry.Hash, err)
			}
			report.PackObjects++
		}
		report.PackFiles++
	}
	return report, nil
}

var _ odb.Backend = (*Backend)(nil)
