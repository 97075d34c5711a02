package pack

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/quarry-vcs/quarry/pkg/object"
)

const (
	indexHeaderSize = 12
	indexRowSize    = 32 + 8
)

// IndexEntry is one row in a pack index: a hash and the pack-file offset
// its entry starts at.
type IndexEntry struct {
	Hash   object.Hash
	Offset uint64
}

// Index is a parsed pack index.
type Index struct {
	PackChecksum object.Hash
	entries      []IndexEntry // sorted by hash
}

// Entries returns the rows in hash order.
func (idx *Index) Entries() []IndexEntry {
	out := make([]IndexEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Find locates a hash by binary search.
func (idx *Index) Find(h object.Hash) (IndexEntry, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Hash >= h
	})
	if i < len(idx.entries) && idx.entries[i].Hash == h {
		return idx.entries[i], true
	}
	return IndexEntry{}, false
}

// WriteIndex writes a sorted index for the given entries and pack checksum,
// returning the hex-encoded index checksum.
func WriteIndex(w io.Writer, entries []IndexEntry, packChecksum object.Hash) (object.Hash, error) {
	sorted := make([]IndexEntry, len(entries))
	copy(sorted, entries)
	for i := range sorted {
		if _, err := object.HashToBytes(sorted[i].Hash); err != nil {
			return "", fmt.Errorf("entry %d: %w", i, err)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Hash < sorted[j].Hash
	})

	packChecksumRaw, err := object.HashToBytes(packChecksum)
	if err != nil {
		return "", fmt.Errorf("pack checksum: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(indexMagic[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(formatVersion))
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(sorted)))
	for _, entry := range sorted {
		raw, _ := object.HashToBytes(entry.Hash)
		buf.Write(raw)
		_ = binary.Write(&buf, binary.BigEndian, entry.Offset)
	}
	buf.Write(packChecksumRaw)

	indexSum := sha256.Sum256(buf.Bytes())
	buf.Write(indexSum[:])

	if _, err := w.Write(buf.Bytes()); err != nil {
		return "", fmt.Errorf("write pack index: %w", err)
	}
	return object.Hash(hex.EncodeToString(indexSum[:])), nil
}

// ReadIndex parses and checksums an index file.
func ReadIndex(data []byte) (*Index, error) {
	if len(data) < indexHeaderSize+32+32 {
		return nil, fmt.Errorf("pack index too short: %d bytes", len(data))
	}
	if string(data[:4]) != string(indexMagic[:]) {
		return nil, fmt.Errorf("invalid index magic %q", data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}
	count := binary.BigEndian.Uint32(data[8:12])

	body := indexHeaderSize + int(count)*indexRowSize
	if len(data) != body+32+32 {
		return nil, fmt.Errorf("pack index size mismatch: %d entries in %d bytes", count, len(data))
	}

	wantSum := data[len(data)-32:]
	gotSum := sha256.Sum256(data[:len(data)-32])
	if !bytes.Equal(wantSum, gotSum[:]) {
		return nil, fmt.Errorf("pack index checksum mismatch")
	}

	idx := &Index{
		PackChecksum: object.Hash(hex.EncodeToString(data[body : body+32])),
		entries:      make([]IndexEntry, 0, count),
	}
	for i := 0; i < int(count); i++ {
		row := data[indexHeaderSize+i*indexRowSize:]
		idx.entries = append(idx.entries, IndexEntry{
			Hash:   object.Hash(hex.EncodeToString(row[:32])),
			Offset: binary.BigEndian.Uint64(row[32:40]),
		})
	}
	for i := 1; i < len(idx.entries); i++ {
		if idx.entries[i-1].Hash >= idx.entries[i].Hash {
			return nil, fmt.Errorf("pack index rows not strictly sorted")
		}
	}
	return idx, nil
}
