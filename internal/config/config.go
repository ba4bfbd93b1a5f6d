package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	SourceRoot     string   `toml:"source_root"`
	UnitSuffix     string   `toml:"unit_suffix"`
	ArtifactDir    string   `toml:"artifact_dir"`
	ArtifactSuffix string   `toml:"artifact_suffix"`
	DepsDir        string   `toml:"deps_dir"`
	HashStore      string   `toml:"hash_store"`
	HistoryDB      string   `toml:"history_db"`
	Extractor      string   `toml:"extractor"` // "scan" or "ast"
	Dangling       string   `toml:"dangling"`  // "ignore", "warn" or "error"
	Exclude        []string `toml:"exclude"`   // glob patterns on unit file names

	Compiler Compiler `toml:"compiler"`
	Watch    Watch    `toml:"watch"`
	Metrics  Metrics  `toml:"metrics"`
}

type Compiler struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// MaxRunsPerMinute bounds how often filesystem churn may trigger a build.
	MaxRunsPerMinute int `toml:"max_runs_per_minute"`
}

type Metrics struct {
	Addr string `toml:"addr"` // empty disables the /metrics endpoint
	OTLP string `toml:"otlp"` // empty disables trace export
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no rebuild.toml exists,
// matching the conventional src/bin/.deps layout.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.SourceRoot == "" {
		c.SourceRoot = "src"
	}
	if c.UnitSuffix == "" {
		c.UnitSuffix = ".java"
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = "bin"
	}
	if c.ArtifactSuffix == "" {
		c.ArtifactSuffix = ".class"
	}
	if c.DepsDir == "" {
		c.DepsDir = ".deps"
	}
	if c.HashStore == "" {
		c.HashStore = ".rebuild/hashes.json"
	}
	if c.Extractor == "" {
		c.Extractor = "ast"
	}
	if c.Dangling == "" {
		c.Dangling = "warn"
	}
	if c.Compiler.Command == "" {
		c.Compiler.Command = "javac"
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if c.Watch.MaxRunsPerMinute == 0 {
		c.Watch.MaxRunsPerMinute = 30
	}
}

func (c *Config) validate() error {
	switch c.Extractor {
	case "scan", "ast":
	default:
		return fmt.Errorf("invalid extractor %q: must be \"scan\" or \"ast\"", c.Extractor)
	}
	switch c.Dangling {
	case "ignore", "warn", "error":
	default:
		return fmt.Errorf("invalid dangling policy %q: must be \"ignore\", \"warn\" or \"error\"", c.Dangling)
	}
	if !strings.HasPrefix(c.UnitSuffix, ".") {
		return fmt.Errorf("unit_suffix %q must start with a dot", c.UnitSuffix)
	}
	return nil
}
