package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config stores repository-local settings.
type Config struct {
	Core  CoreConfig  `toml:"core"`
	Cache CacheConfig `toml:"cache"`
}

// CoreConfig covers repository identity and at-rest encoding.
type CoreConfig struct {
	Bare        bool `toml:"bare"`
	Compression bool `toml:"compression"`
}

// CacheConfig sizes the in-memory object cache. Size is the number of
// cached objects; zero disables the cache.
type CacheConfig struct {
	Size int `toml:"size"`
}

const defaultCacheSize = 512

// DefaultConfig returns the settings a fresh repository starts with.
func DefaultConfig(bare bool) *Config {
	return &Config{
		Core:  CoreConfig{Bare: bare, Compression: true},
		Cache: CacheConfig{Size: defaultCacheSize},
	}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.QuarryDir, "config.toml")
}

// loadConfig reads a config.toml, filling unset keys with defaults. A
// missing file returns the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := DefaultConfig(false)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.Cache.Size < 0 {
		return nil, fmt.Errorf("read config: cache size must not be negative")
	}
	return cfg, nil
}

// WriteConfig atomically rewrites config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("write config: nil config")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(r.QuarryDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	r.Config = cfg
	return nil
}
