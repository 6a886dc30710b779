// Package config holds codeindex's YAML-backed configuration: database path,
// ignore rules, language toggles, agent defaults, and logging level.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object, loaded from .codeindex/config.yaml
// with environment-variable overrides applied on top.
type Config struct {
	DB       DBConfig       `yaml:"db"`
	Walk     WalkConfig     `yaml:"walk"`
	Agent    AgentConfig    `yaml:"agent"`
	Logging  LoggingConfig  `yaml:"logging"`
	Manifest ManifestConfig `yaml:"manifest"`
}

// DBConfig configures the embedded relational store.
type DBConfig struct {
	Path string `yaml:"path"`
}

// WalkConfig configures the indexing file walk.
type WalkConfig struct {
	IgnoreGlobs    []string `yaml:"ignore_globs"`
	Languages      []string `yaml:"languages"` // empty = all registered languages
	WorkerPoolSize int      `yaml:"worker_pool_size"`
}

// AgentConfig configures the orchestrator's default LLM target.
type AgentConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	TimeoutMs int    `yaml:"timeout_ms"`
	MaxSteps  int    `yaml:"max_steps"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// ManifestConfig configures read-only dependency-manifest discovery.
type ManifestConfig struct {
	CargoHome string `yaml:"cargo_home"`
	Home      string `yaml:"home"`
}

// DefaultConfig returns the baseline configuration before env overrides.
func DefaultConfig() *Config {
	return &Config{
		DB: DBConfig{
			Path: "codeindex.db",
		},
		Walk: WalkConfig{
			IgnoreGlobs:    []string{"**/.git/**", "**/node_modules/**", "**/target/**", "**/vendor/**", "**/dist/**", "**/build/**"},
			WorkerPoolSize: 0, // 0 => runtime.GOMAXPROCS
		},
		Agent: AgentConfig{
			Provider:  "openai",
			TimeoutMs: 60_000,
			MaxSteps:  6,
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads YAML config from path if present, falling back to defaults, then
// applies environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEINDEX_DB"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("CARGO_HOME"); v != "" {
		cfg.Manifest.CargoHome = v
	} else if home, err := os.UserHomeDir(); err == nil {
		cfg.Manifest.CargoHome = filepath.Join(home, ".cargo")
	}
	if v := os.Getenv("HOME"); v != "" {
		cfg.Manifest.Home = v
	}
	if v := os.Getenv("CODEINDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
