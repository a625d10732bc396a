// Package config holds the daemon configuration: filesystem layout
// under ~/.engram, an optional YAML overlay, and the scoring file that
// tunes classification, consolidation and ranking.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/engramhq/engram-mcp/internal/classify"
	"github.com/engramhq/engram-mcp/internal/consolidate"
	"github.com/engramhq/engram-mcp/internal/rank"
	"github.com/engramhq/engram-mcp/internal/watcher"
)

type Config struct {
	SocketPath   string `yaml:"socket_path"`
	DatabasePath string `yaml:"database_path"`
	VectorDir    string `yaml:"vector_dir"`
	ScoringPath  string `yaml:"scoring_path"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	Watcher watcher.Config `yaml:"watcher"`
}

// Scoring bundles the tunable tables: classification vocabulary,
// per-type consolidation constants and ranking weights. All three live
// in one YAML file so an edit reloads them together.
type Scoring struct {
	Classifier    *classify.Config   `yaml:"classifier"`
	Consolidation consolidate.Config `yaml:"consolidation"`
	Ranking       rank.Weights       `yaml:"ranking"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	engramDir := filepath.Join(homeDir, ".engram")

	return &Config{
		SocketPath:   filepath.Join(engramDir, "engram.sock"),
		DatabasePath: filepath.Join(engramDir, "memories.db"),
		VectorDir:    filepath.Join(engramDir, "vectors"),
		ScoringPath:  filepath.Join(engramDir, "scoring.yaml"),
		LogLevel:     "info",
		LogFormat:    "json",
		CacheSize:    128,
		CacheTTL:     time.Minute,
		Watcher:      watcher.DefaultConfig(),
	}
}

// Load returns the defaults overlaid with the YAML file at path. An
// empty path or a missing file yields the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) EnsureDirectories() error {
	for _, p := range []string{c.SocketPath, c.DatabasePath, c.ScoringPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return err
		}
	}
	if c.VectorDir != "" {
		if err := os.MkdirAll(c.VectorDir, 0700); err != nil {
			return err
		}
	}
	return nil
}

// LoadScoring reads the scoring file at path, overlaying the built-in
// tables. A missing file yields the defaults. Every section is
// validated before the result is returned, so a bad edit never reaches
// the engine.
func LoadScoring(path string) (*Scoring, error) {
	s := &Scoring{
		Classifier:    classify.DefaultConfig(),
		Consolidation: consolidate.DefaultConfig(),
		Ranking:       rank.DefaultWeights(),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read scoring %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("parse scoring %s: %w", path, err)
			}
		}
	}

	if err := s.Classifier.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}
	if err := s.Consolidation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consolidation config: %w", err)
	}
	if err := s.Ranking.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranking weights: %w", err)
	}

	return s, nil
}
