// Package config loads repo-level settings from .codegraph.yaml and the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/codegraph/internal/lang"
)

// FileName is the config file looked up at the repository root.
const FileName = ".codegraph.yaml"

const (
	EnvDB    = "CODEGRAPH_DB"
	EnvGraph = "CODEGRAPH_GRAPH"
)

// DefaultGraph names the graph when neither flag, env nor file sets one.
const DefaultGraph = "codegraph"

// DefaultDebounce is the watch-mode quiet period.
const DefaultDebounce = 500 * time.Millisecond

// Config holds user-overridable settings.
type Config struct {
	// DBPath is the SQLite graph file. Relative paths are resolved against
	// the repository root.
	DBPath string `yaml:"db_path"`

	// Graph names the graph. It picks the default database file
	// (.codegraph/<graph>.db) when DBPath is unset.
	Graph string `yaml:"graph"`

	// Jobs is the worker count for parsing and resolution. Default: NumCPU.
	Jobs int `yaml:"jobs"`

	// Languages restricts indexing (e.g. [go, py]). Default: all six.
	Languages []string `yaml:"languages"`

	// Ignore holds extra .gitignore-style patterns.
	Ignore []string `yaml:"ignore"`

	// MetricsAddr serves prometheus metrics during `serve` when set.
	MetricsAddr string `yaml:"metrics_addr"`

	Watch WatchConfig `yaml:"watch"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	// Debounce is a Go duration string. Default: 500ms.
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig reads .codegraph.yaml from dir and applies environment
// overrides. A missing file yields defaults; an invalid one is logged and
// ignored.
func LoadConfig(dir string) *Config {
	cfg := DefaultConfig()

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			slog.Warn("config.invalid", "path", path, "err", err)
			cfg = DefaultConfig()
		}
	}

	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides file settings with CODEGRAPH_DB and CODEGRAPH_GRAPH.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvGraph); v != "" {
		c.Graph = v
	}
}

// EffectiveGraph returns the configured graph name, or "codegraph".
func (c *Config) EffectiveGraph() string {
	if c.Graph != "" {
		return c.Graph
	}
	return DefaultGraph
}

// EffectiveDBPath returns the graph database path for a repository root.
func (c *Config) EffectiveDBPath(root string) string {
	p := c.DBPath
	if p == "" {
		p = filepath.Join(".codegraph", c.EffectiveGraph()+".db")
	}
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// EffectiveMetaDir returns the badger directory that sits next to the
// database file.
func (c *Config) EffectiveMetaDir(root string) string {
	db := c.EffectiveDBPath(root)
	return strings.TrimSuffix(db, filepath.Ext(db)) + ".meta"
}

// EffectiveJobs returns the configured worker count, or NumCPU.
func (c *Config) EffectiveJobs() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.NumCPU()
}

// EffectiveLanguages returns the language filter. Unknown names are
// returned separately so the caller can warn about them.
func (c *Config) EffectiveLanguages() ([]lang.Language, []string) {
	if len(c.Languages) == 0 {
		return nil, nil
	}
	return lang.ParseLanguages(strings.Join(c.Languages, ","))
}

// EffectiveDebounce returns the watch debounce, or 500ms when unset or
// unparsable.
func (c *Config) EffectiveDebounce() time.Duration {
	if c.Watch.Debounce == "" {
		return DefaultDebounce
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return DefaultDebounce
	}
	return d
}
