package pack

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/quarry-vcs/quarry/pkg/object"
)

type countedWriter struct {
	w io.Writer
	n uint64
}

func (cw *countedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

// Writer streams objects into a pack. The trailer checksum is SHA-256 over
// all bytes preceding the trailer and names the finished pack file.
type Writer struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *countedWriter
	enc      *zstd.Encoder
	expected uint32
	written  uint32
	finished bool
}

// NewWriter initializes a pack writer and writes the fixed header.
func NewWriter(out io.Writer, numObjects uint32) (*Writer, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}

	hasher := sha256.New()
	counter := &countedWriter{w: out}
	pw := &Writer{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		enc:      enc,
		expected: numObjects,
	}

	header := packHeader{version: formatVersion, numObjects: numObjects}
	if _, err := pw.hashedW.Write(header.marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the byte offset the next entry will start at.
func (p *Writer) CurrentOffset() uint64 {
	return p.counter.n
}

// WriteObject appends one object's content to the pack and returns the
// offset its entry started at, for the index.
func (p *Writer) WriteObject(objType object.ObjectType, content []byte) (uint64, error) {
	if p.finished {
		return 0, fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return 0, fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	et, err := toEntryType(objType)
	if err != nil {
		return 0, err
	}

	offset := p.CurrentOffset()
	compressed := p.enc.EncodeAll(content, nil)
	header := encodeEntryHeader(et, uint64(len(content)), uint64(len(compressed)))
	if _, err := p.hashedW.Write(header); err != nil {
		return 0, fmt.Errorf("write pack entry header: %w", err)
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return 0, fmt.Errorf("write pack entry payload: %w", err)
	}

	p.written++
	return offset, nil
}

// Finish validates the object count, writes the trailing checksum, and
// returns it as a hex digest.
func (p *Writer) Finish() (object.Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}
	p.finished = true
	p.enc.Close()
	return object.Hash(hex.EncodeToString(sum)), nil
}
