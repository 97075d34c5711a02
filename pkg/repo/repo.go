// Package repo ties a quarry repository on disk to its object database:
// init/open, TOML configuration, and backend wiring. A standard repository
// keeps its state under .quarry/ inside the working tree; a bare repository
// is the state directory itself, with no working tree at all.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quarry-vcs/quarry/pkg/backend/cached"
	"github.com/quarry-vcs/quarry/pkg/backend/loose"
	"github.com/quarry-vcs/quarry/pkg/backend/pack"
	"github.com/quarry-vcs/quarry/pkg/odb"
)

const quarryDirName = ".quarry"

// Backend priorities: loose objects shadow packed copies of the same hash,
// and new writes always land loose.
const (
	loosePriority = 100
	packPriority  = 50
)

// Repo is an opened repository.
type Repo struct {
	// RootDir is the working tree root. For a bare repository it equals
	// QuarryDir and carries no working tree.
	RootDir   string
	QuarryDir string
	Config    *Config

	// DB is the object database wired to this repository's backends.
	DB *odb.Database

	loose *loose.Backend
	packs *pack.Backend
}

// IsBare reports whether the repository has no working tree.
func (r *Repo) IsBare() bool {
	return r.Config.Core.Bare
}

// WorkDir returns the working tree root. Undefined for bare repositories.
func (r *Repo) WorkDir() string {
	return r.RootDir
}

// Init creates a new repository at path. With bare set, path itself becomes
// the state directory; otherwise state lives under path/.quarry. Fails if a
// repository already exists there.
func Init(path string, bare bool) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}

	quarryDir := filepath.Join(abs, quarryDirName)
	if bare {
		quarryDir = abs
	}
	if _, err := os.Stat(filepath.Join(quarryDir, "config.toml")); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", quarryDir)
	}

	dirs := []string{
		filepath.Join(quarryDir, "objects", "pack"),
		filepath.Join(quarryDir, "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(quarryDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := &Repo{RootDir: abs, QuarryDir: quarryDir}
	if err := r.WriteConfig(DefaultConfig(bare)); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// Open opens the repository containing path. If path is itself a bare
// repository directory it is opened directly; otherwise the search walks
// upward for a .quarry directory.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	if isRepoStateDir(abs) {
		return openAt(abs, abs)
	}

	cur := abs
	for {
		quarryDir := filepath.Join(cur, quarryDirName)
		if isRepoStateDir(quarryDir) {
			return openAt(cur, quarryDir)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a quarry repository (or any parent up to /)")
		}
		cur = parent
	}
}

func isRepoStateDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, "objects"))
	return err == nil && info.IsDir()
}

func openAt(rootDir, quarryDir string) (*Repo, error) {
	cfg, err := loadConfig(filepath.Join(quarryDir, "config.toml"))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	r := &Repo{RootDir: rootDir, QuarryDir: quarryDir, Config: cfg}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return r, nil
}

// connect wires the object database to the on-disk backends.
func (r *Repo) connect() error {
	r.loose = loose.New(r.QuarryDir, r.Config.Core.Compression)

	packs, err := pack.Open(filepath.Join(r.QuarryDir, "objects", "pack"))
	if err != nil {
		return err
	}
	r.packs = packs

	var looseBackend odb.Backend = r.loose
	if size := r.Config.Cache.Size; size > 0 {
		wrapped, err := cached.Wrap(r.loose, size)
		if err != nil {
			return err
		}
		looseBackend = wrapped
	}

	r.DB = odb.NewDatabase(r)
	if err := r.DB.AddBackend(looseBackend, loosePriority); err != nil {
		return err
	}
	return r.DB.AddBackend(r.packs, packPriority)
}

// Head reads HEAD. A "ref: " prefix yields the ref path; anything else is
// returned verbatim as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.QuarryDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")
	return strings.TrimPrefix(content, "ref: "), nil
}
