// Package config loads commitcanvas settings from a TOML file.
//
// A missing file is not an error: every setting has a default, so the
// binary runs unconfigured. Durations are written as Go duration strings:
//
//	[drag]
//	subtree_default = true
//	write_delay = "500ms"
//
//	[cache]
//	backend = "bolt"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/commitcanvas/pkg/dag/ordering"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/layout"
	"github.com/matzehuels/commitcanvas/pkg/layoutcache"
	"github.com/matzehuels/commitcanvas/pkg/pagination"
)

const appName = "commitcanvas"

// Duration is a time.Duration that decodes from strings like "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full settings tree.
type Config struct {
	Layout     LayoutConfig     `toml:"layout"`
	Pagination PaginationConfig `toml:"pagination"`
	Drag       DragConfig       `toml:"drag"`
	Cache      CacheConfig      `toml:"cache"`
	Server     ServerConfig     `toml:"server"`
	Watch      WatchConfig      `toml:"watch"`
}

// LayoutConfig tunes the topological layout engine.
type LayoutConfig struct {
	RowSpacing    float64 `toml:"row_spacing"`
	ColumnSpacing float64 `toml:"column_spacing"`
	Passes        int     `toml:"passes"`
	// Cycles is "drop" or "fail".
	Cycles string `toml:"cycles"`
}

// PaginationConfig sets the history page size.
type PaginationConfig struct {
	PageSize int `toml:"page_size"`
}

// DragConfig sets drag behavior and persistence debounce.
type DragConfig struct {
	SubtreeDefault bool     `toml:"subtree_default"`
	WriteDelay     Duration `toml:"write_delay"`
}

// CacheConfig selects the layout cache backend.
type CacheConfig struct {
	Backend string `toml:"backend"`
	// Dir defaults to $XDG_CACHE_HOME/commitcanvas.
	Dir      string `toml:"dir"`
	BoltPath string `toml:"bolt_path"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// WatchConfig configures automatic refresh on repository changes.
type WatchConfig struct {
	Enabled  bool     `toml:"enabled"`
	Debounce Duration `toml:"debounce"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Layout: LayoutConfig{
			RowSpacing:    layout.DefaultRowSpacing,
			ColumnSpacing: layout.DefaultColumnSpacing,
			Passes:        ordering.DefaultPasses,
			Cycles:        "drop",
		},
		Pagination: PaginationConfig{PageSize: pagination.DefaultPageSize},
		Drag: DragConfig{
			SubtreeDefault: true,
			WriteDelay:     Duration{layoutcache.DefaultDebounce},
		},
		Cache: CacheConfig{
			Backend:       layoutcache.BackendFile,
			MongoDatabase: appName,
		},
		Server: ServerConfig{Addr: "127.0.0.1:7420"},
		Watch:  WatchConfig{Enabled: true, Debounce: Duration{300 * time.Millisecond}},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/commitcanvas/config.toml, falling
// back to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DefaultCacheDir returns $XDG_CACHE_HOME/commitcanvas, falling back to
// ~/.cache/commitcanvas.
func DefaultCacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Load reads path over the defaults. An empty path means DefaultPath. A
// missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg, keeping values the data does not set,
// and validates the result.
func Parse(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidInput, "unknown config key %q", undecoded[0].String())
	}
	return cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Layout.RowSpacing <= 0 || c.Layout.ColumnSpacing <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "layout spacing must be positive")
	}
	if c.Layout.Passes <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "layout passes must be positive")
	}
	if _, err := layout.ParseCyclePolicy(c.Layout.Cycles); err != nil {
		return err
	}
	if c.Pagination.PageSize <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "pagination page_size must be positive")
	}
	if c.Drag.WriteDelay.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "drag write_delay must be positive")
	}
	if !slices.Contains(layoutcache.Backends, c.Cache.Backend) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Watch.Enabled && c.Watch.Debounce.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "watch debounce must be positive")
	}
	return nil
}

// LayoutOptions converts the [layout] section.
func (c Config) LayoutOptions() layout.Options {
	policy, _ := layout.ParseCyclePolicy(c.Layout.Cycles)
	return layout.Options{
		RowSpacing:    c.Layout.RowSpacing,
		ColumnSpacing: c.Layout.ColumnSpacing,
		Passes:        c.Layout.Passes,
		CyclePolicy:   policy,
	}
}

// CacheOptions converts the [cache] section, resolving the default
// directory.
func (c Config) CacheOptions() (layoutcache.Config, error) {
	dir := c.Cache.Dir
	if dir == "" {
		d, err := DefaultCacheDir()
		if err != nil {
			return layoutcache.Config{}, fmt.Errorf("resolve cache dir: %w", err)
		}
		dir = d
	}
	return layoutcache.Config{
		Backend:  c.Cache.Backend,
		Dir:      dir,
		BoltPath: c.Cache.BoltPath,
		Redis: layoutcache.RedisConfig{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		},
		Mongo: layoutcache.MongoConfig{
			URI:      c.Cache.MongoURI,
			Database: c.Cache.MongoDatabase,
		},
	}, nil
}
