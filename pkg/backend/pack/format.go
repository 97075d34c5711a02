// Package pack implements a compacted multi-object file format and a
// read-only backend over a directory of pack/index pairs.
//
// A pack file is:
//
//	"QPCK" | version u32 | object count u32 | entries... | sha256 trailer
//
// Each entry is a variable-length header encoding the object type and
// uncompressed content size, followed by a uvarint compressed size and the
// zstd-compressed content. Carrying the compressed size in the header makes
// entries randomly addressable: a reader seeks to an indexed offset and
// reads exactly one entry without scanning the pack.
//
// The companion index is:
//
//	"QIDX" | version u32 | entry count u32 | rows... | pack checksum | sha256
//
// with fixed-width rows (32-byte raw hash, big-endian u64 offset) sorted by
// hash for binary search.
package pack

import (
	"encoding/binary"
	"fmt"

	"github.com/quarry-vcs/quarry/pkg/object"
)

const (
	formatVersion  = 1
	packHeaderSize = 12
)

var (
	packMagic  = [4]byte{'Q', 'P', 'C', 'K'}
	indexMagic = [4]byte{'Q', 'I', 'D', 'X'}
)

// entryType is the per-entry object type encoding.
type entryType uint8

const (
	entryCommit entryType = 1
	entryTree   entryType = 2
	entryBlob   entryType = 3
	entryTag    entryType = 4
)

func toEntryType(t object.ObjectType) (entryType, error) {
	switch t {
	case object.TypeCommit:
		return entryCommit, nil
	case object.TypeTree:
		return entryTree, nil
	case object.TypeBlob:
		return entryBlob, nil
	case object.TypeTag:
		return entryTag, nil
	default:
		return 0, fmt.Errorf("unsupported object type %q", t)
	}
}

func fromEntryType(et entryType) (object.ObjectType, error) {
	switch et {
	case entryCommit:
		return object.TypeCommit, nil
	case entryTree:
		return object.TypeTree, nil
	case entryBlob:
		return object.TypeBlob, nil
	case entryTag:
		return object.TypeTag, nil
	default:
		return "", fmt.Errorf("unsupported packed object type %d", et)
	}
}

// packHeader is the fixed-size pack file header.
type packHeader struct {
	version    uint32
	numObjects uint32
}

func (h packHeader) marshal() []byte {
	buf := make([]byte, packHeaderSize)
	copy(buf[:4], packMagic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.version)
	binary.BigEndian.PutUint32(buf[8:12], h.numObjects)
	return buf
}

func parsePackHeader(data []byte) (*packHeader, error) {
	if len(data) < packHeaderSize {
		return nil, fmt.Errorf("pack header too short: got %d bytes", len(data))
	}
	if string(data[:4]) != string(packMagic[:]) {
		return nil, fmt.Errorf("invalid pack magic %q", data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported pack version %d", version)
	}
	return &packHeader{
		version:    version,
		numObjects: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// encodeEntryHeader encodes the entry header: the low nibble of the first
// byte carries the bottom 4 bits of the uncompressed size, the type sits in
// bits 4-6, and the continuation bit extends the size 7 bits at a time.
// The compressed payload size follows as a uvarint.
func encodeEntryHeader(et entryType, size, compressedSize uint64) []byte {
	b := byte((et & 0x7) << 4)
	b |= byte(size & 0x0f)
	size >>= 4

	out := make([]byte, 0, 20)
	if size > 0 {
		b |= 0x80
	}
	out = append(out, b)
	for size > 0 {
		next := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			next |= 0x80
		}
		out = append(out, next)
	}

	var varint [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varint[:], compressedSize)
	return append(out, varint[:n]...)
}

// decodeEntryHeader decodes an entry header, returning the object type,
// uncompressed size, compressed size, and bytes consumed.
func decodeEntryHeader(data []byte) (entryType, uint64, uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, 0, 0, fmt.Errorf("empty entry header")
	}

	b := data[0]
	et := entryType((b >> 4) & 0x7)
	size := uint64(b & 0x0f)
	shift := uint(4)
	consumed := 1

	for b&0x80 != 0 {
		if consumed >= len(data) {
			return 0, 0, 0, 0, fmt.Errorf("truncated entry size")
		}
		b = data[consumed]
		size |= uint64(b&0x7f) << shift
		shift += 7
		consumed++
	}

	compressedSize, n := binary.Uvarint(data[consumed:])
	if n <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("truncated compressed size")
	}
	return et, size, compressedSize, consumed + n, nil
}
