package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content",
// mirroring Git's object hashing but with SHA-256. Identical (type, content)
// pairs always produce identical hashes.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// NewObjectHasher returns a hash.Hash pre-seeded with the envelope header
// for an object whose content length is already known, so large content can
// be hashed in a streaming pass. SumHash finalizes it.
func NewObjectHasher(objType ObjectType, size int64) hash.Hash {
	h := sha256.New()
	fmt.Fprintf(h, "%s %d\x00", objType, size)
	return h
}

// SumHash finalizes a hasher from NewObjectHasher into a Hash.
func SumHash(h hash.Hash) Hash {
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// MakeEnvelope returns the canonical stored form "type len\0content".
func MakeEnvelope(objType ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	out = append(out, data...)
	return out
}

// ValidHash reports whether h looks like a well-formed object hash.
func ValidHash(h Hash) bool {
	if len(h) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// HashToBytes decodes a hex hash into its 32 raw bytes.
func HashToBytes(h Hash) ([]byte, error) {
	if len(h) != 64 {
		return nil, fmt.Errorf("hash length must be 64 hex chars, got %d", len(h))
	}
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", h, err)
	}
	return raw, nil
}
