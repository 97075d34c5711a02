package odb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/quarry-vcs/quarry/pkg/object"
)

// DefaultChunkSize is the buffer size for streaming ingestion. Content is
// pulled from the source in chunks of this size and handed straight to the
// backend's write handle; the whole payload is never held in memory.
const DefaultChunkSize = 32 * 1024

// writeStream pulls bytes from src in bounded chunks and streams them into
// the highest-priority writable backend, returning the resulting hash.
// Cancellation is checked between chunks: a chunk is the smallest unit of
// work that cannot be interrupted. Zero-length content is valid and yields
// the canonical empty-object hash for the type.
func (db *Database) writeStream(ctx context.Context, t object.ObjectType, src io.Reader) (object.Hash, error) {
	if src == nil {
		return "", fmt.Errorf("%w: nil content source", ErrInvalidArgument)
	}

	wh, err := db.registry.NewWriter(t)
	if err != nil {
		return "", err
	}

	chunk := db.chunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	buf := make([]byte, chunk)

	for {
		if err := ctx.Err(); err != nil {
			_ = wh.Abort()
			return "", fmt.Errorf("%w: %v", ErrSourceRead, err)
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := wh.Write(buf[:n]); err != nil {
				_ = wh.Abort()
				if errors.Is(err, ErrStorage) {
					return "", err
				}
				return "", fmt.Errorf("%w: %v", ErrStorage, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = wh.Abort()
			return "", fmt.Errorf("%w: %v", ErrSourceRead, readErr)
		}
	}

	h, err := wh.Commit()
	if err != nil {
		if errors.Is(err, ErrStorage) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return h, nil
}

// writeBytes stores an already-serialized object through the same write path.
func (db *Database) writeBytes(t object.ObjectType, data []byte) (object.Hash, error) {
	wh, err := db.registry.NewWriter(t)
	if err != nil {
		return "", err
	}
	if len(data) > 0 {
		if _, err := wh.Write(data); err != nil {
			_ = wh.Abort()
			return "", fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	h, err := wh.Commit()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return h, nil
}
