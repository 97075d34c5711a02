package repo

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quarry-vcs/quarry/pkg/object"
	"github.com/quarry-vcs/quarry/pkg/odb"
)

func TestInitCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	quarryDir := filepath.Join(dir, ".quarry")
	if r.QuarryDir != quarryDir {
		t.Errorf("QuarryDir: got %q, want %q", r.QuarryDir, quarryDir)
	}
	for _, p := range []string{
		filepath.Join(quarryDir, "config.toml"),
		filepath.Join(quarryDir, "HEAD"),
		filepath.Join(quarryDir, "objects", "pack"),
		filepath.Join(quarryDir, "refs", "heads"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
	if r.IsBare() {
		t.Error("standard repository reports bare")
	}
	if r.WorkDir() != dir {
		t.Errorf("WorkDir: got %q, want %q", r.WorkDir(), dir)
	}

	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != "refs/heads/main" {
		t.Errorf("Head: got %q", head)
	}
}

func TestInitBare(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, true)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if r.QuarryDir != dir {
		t.Errorf("bare QuarryDir: got %q, want %q", r.QuarryDir, dir)
	}
	if !r.IsBare() {
		t.Error("bare repository reports non-bare")
	}
}

func TestInitRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := Init(dir, false); err == nil {
		t.Error("second Init succeeded")
	}
}

func TestOpenFromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r, err := Open(nested)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir: got %q, want %q", r.RootDir, dir)
	}
}

func TestOpenBareDirectly(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, true); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !r.IsBare() {
		t.Error("opened bare repository reports non-bare")
	}
}

func TestOpenOutsideRepository(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Open succeeded outside any repository")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	cfg := DefaultConfig(false)
	cfg.Core.Compression = false
	cfg.Cache.Size = 7
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Config.Core.Compression {
		t.Error("compression setting not persisted")
	}
	if reopened.Config.Cache.Size != 7 {
		t.Errorf("cache size: got %d, want 7", reopened.Config.Cache.Size)
	}
}

func TestObjectsPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	content := []byte("persisted through the object database")
	blob, err := r.DB.CreateBlobFromStream(context.Background(), bytes.NewReader(content), "")
	if err != nil {
		t.Fatalf("CreateBlobFromStream: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := reopened.DB.ReadBlob(blob.ID)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if !bytes.Equal(got.Data, content) {
		t.Error("blob content changed across reopen")
	}
}

func TestBlobFromRelativePath(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	content := []byte("tracked file")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	blob, err := r.DB.CreateBlobFromPath(context.Background(), "notes.txt")
	if err != nil {
		t.Fatalf("CreateBlobFromPath: %v", err)
	}
	if blob.ID != object.HashObject(object.TypeBlob, content) {
		t.Error("blob hash does not match file content")
	}
}

func TestBareRejectsRelativePath(t *testing.T) {
	r, err := Init(t.TempDir(), true)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, err = r.DB.CreateBlobFromPath(context.Background(), "notes.txt")
	if !errors.Is(err, odb.ErrInvalidOperation) {
		t.Errorf("got %v, want ErrInvalidOperation", err)
	}
}

func seedBlobs(t *testing.T, r *Repo, contents []string) []object.Hash {
	t.Helper()
	hashes := make([]object.Hash, 0, len(contents))
	for _, c := range contents {
		blob, err := r.DB.CreateBlobFromStream(context.Background(), bytes.NewReader([]byte(c)), "")
		if err != nil {
			t.Fatalf("CreateBlobFromStream: %v", err)
		}
		hashes = append(hashes, blob.ID)
	}
	return hashes
}

func TestRepackMovesLooseIntoPack(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	hashes := seedBlobs(t, r, []string{"alpha", "beta", "gamma"})

	summary, err := r.Repack()
	if err != nil {
		t.Fatalf("Repack: %v", err)
	}
	if summary.PackedObjects != 3 || summary.PrunedLoose != 3 {
		t.Errorf("summary: %+v", summary)
	}

	remaining, err := r.loose.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("loose objects left after repack: %v", remaining)
	}
	for _, h := range hashes {
		if !r.DB.Contains(h) {
			t.Errorf("object %s unreadable after repack", h)
		}
	}
}

func TestRepackReadableAfterReopen(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	content := "survives repack and reopen"
	hashes := seedBlobs(t, r, []string{content})
	if _, err := r.Repack(); err != nil {
		t.Fatalf("Repack: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := reopened.DB.ReadBlob(hashes[0])
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(got.Data) != content {
		t.Errorf("packed blob content: got %q", got.Data)
	}
}

func TestRepackNothingToDo(t *testing.T) {
	r, err := Init(t.TempDir(), false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	seedBlobs(t, r, []string{"only once"})
	if _, err := r.Repack(); err != nil {
		t.Fatalf("first Repack: %v", err)
	}

	summary, err := r.Repack()
	if err != nil {
		t.Fatalf("second Repack: %v", err)
	}
	if summary.PackedObjects != 0 {
		t.Errorf("second repack packed %d objects", summary.PackedObjects)
	}
}

func TestVerifyCleanRepository(t *testing.T) {
	r, err := Init(t.TempDir(), false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	seedBlobs(t, r, []string{"one", "two"})
	if _, err := r.Repack(); err != nil {
		t.Fatalf("Repack: %v", err)
	}
	seedBlobs(t, r, []string{"three"})

	report, err := r.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.LooseObjects != 1 || report.PackFiles != 1 || report.PackedObjects != 2 {
		t.Errorf("report: %+v", report)
	}
}

func TestVerifyDetectsLooseCorruption(t *testing.T) {
	r, err := Init(t.TempDir(), false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	hashes := seedBlobs(t, r, []string{"about to rot"})

	h := hashes[0]
	path := filepath.Join(r.QuarryDir, "objects", string(h[:2]), string(h[2:]))
	envelope := object.MakeEnvelope(object.TypeBlob, []byte("rotted body!"))
	if err := os.WriteFile(path, envelope, 0o644); err != nil {
		t.Fatalf("corrupt object: %v", err)
	}

	if _, err := r.Verify(); err == nil {
		t.Error("Verify passed on a corrupted loose object")
	}
}
