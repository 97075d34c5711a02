package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quarry-vcs/quarry/pkg/backend/pack"
	"github.com/quarry-vcs/quarry/pkg/object"
)

// RepackSummary reports what a Repack run did.
type RepackSummary struct {
	PackedObjects int
	PrunedLoose   int
	PackChecksum  object.Hash
}

// Repack migrates every loose object not already packed into a fresh
// pack/index pair, then prunes the loose copies. The pack file lands before
// its index, and the index before any loose deletion, so every object stays
// readable at every point.
func (r *Repo) Repack() (*RepackSummary, error) {
	looseHashes, err := r.loose.List()
	if err != nil {
		return nil, fmt.Errorf("repack: %w", err)
	}
	packed := r.packs.PackedHashes()

	var candidates []object.Hash
	for _, h := range looseHashes {
		if _, ok := packed[h]; !ok {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return &RepackSummary{}, nil
	}

	packDir := r.packs.Dir()
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return nil, fmt.Errorf("repack: mkdir pack dir: %w", err)
	}

	tmpPack, err := os.CreateTemp(packDir, ".pack-tmp-*")
	if err != nil {
		return nil, fmt.Errorf("repack: tmpfile: %w", err)
	}
	tmpPackName := tmpPack.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			os.Remove(tmpPackName)
		}
	}()

	pw, err := pack.NewWriter(tmpPack, uint32(len(candidates)))
	if err != nil {
		tmpPack.Close()
		return nil, fmt.Errorf("repack: %w", err)
	}

	entries := make([]pack.IndexEntry, 0, len(candidates))
	for _, h := range candidates {
		objType, content, err := r.loose.Read(h)
		if err != nil {
			tmpPack.Close()
			return nil, fmt.Errorf("repack: read loose %s: %w", h, err)
		}
		offset, err := pw.WriteObject(objType, content)
		if err != nil {
			tmpPack.Close()
			return nil, fmt.Errorf("repack: pack %s: %w", h, err)
		}
		entries = append(entries, pack.IndexEntry{Hash: h, Offset: offset})
	}

	checksum, err := pw.Finish()
	if err != nil {
		tmpPack.Close()
		return nil, fmt.Errorf("repack: %w", err)
	}
	if err := tmpPack.Close(); err != nil {
		return nil, fmt.Errorf("repack: close pack: %w", err)
	}

	base := filepath.Join(packDir, fmt.Sprintf("pack-%s", checksum))
	if err := os.Rename(tmpPackName, base+".pack"); err != nil {
		return nil, fmt.Errorf("repack: rename pack: %w", err)
	}
	cleanupTmp = false

	tmpIdx, err := os.CreateTemp(packDir, ".idx-tmp-*")
	if err != nil {
		return nil, fmt.Errorf("repack: idx tmpfile: %w", err)
	}
	tmpIdxName := tmpIdx.Name()
	if _, err := pack.WriteIndex(tmpIdx, entries, checksum); err != nil {
		tmpIdx.Close()
		os.Remove(tmpIdxName)
		return nil, fmt.Errorf("repack: %w", err)
	}
	if err := tmpIdx.Close(); err != nil {
		os.Remove(tmpIdxName)
		return nil, fmt.Errorf("repack: close idx: %w", err)
	}
	if err := os.Rename(tmpIdxName, base+".idx"); err != nil {
		os.Remove(tmpIdxName)
		return nil, fmt.Errorf("repack: rename idx: %w", err)
	}

	if err := r.packs.Rescan(); err != nil {
		return nil, fmt.Errorf("repack: %w", err)
	}

	summary := &RepackSummary{
		PackedObjects: len(candidates),
		PackChecksum:  checksum,
	}
	for _, h := range candidates {
		if err := r.loose.Remove(h); err != nil {
			return summary, fmt.Errorf("repack: prune loose %s: %w", h, err)
		}
		summary.PrunedLoose++
	}
	return summary, nil
}

// VerifyReport reports the objects checked by Verify.
type VerifyReport struct {
	LooseObjects  int
	PackFiles     int
	PackedObjects int
}

// Verify recomputes the hash of every loose object and re-reads every
// packed object against its index and pack checksums.
func (r *Repo) Verify() (*VerifyReport, error) {
	report := &VerifyReport{}

	looseHashes, err := r.loose.List()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	for _, h := range looseHashes {
		objType, content, err := r.loose.Read(h)
		if err != nil {
			return nil, fmt.Errorf("verify: read loose %s: %w", h, err)
		}
		if computed := object.HashObject(objType, content); computed != h {
			return nil, fmt.Errorf("verify: loose object %s hashes to %s", h, computed)
		}
		report.LooseObjects++
	}

	packSummary, err := r.packs.Verify()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	report.PackFiles = packSummary.PackFiles
	report.PackedObjects = packSummary.PackObjects
	return report, nil
}
