// Package config loads the service configuration from a YAML or JSON file
// with optional environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/reimburse/infra/mqtt"
	"github.com/kilianp07/reimburse/metrics"
)

type Config struct {
	Dataset DatasetConfig  `json:"dataset"`
	Store   StoreConfig    `json:"store"`
	Engine  EngineConfig   `json:"engine"`
	HTTP    HTTPConfig     `json:"http"`
	Metrics metrics.Config `json:"metrics"`
	MQTT    mqtt.Config    `json:"mqtt"`
}

// DatasetConfig locates the historical dataset consumed during store
// construction.
type DatasetConfig struct {
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *DatasetConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "public_cases.json"
	}
}

// StoreConfig selects the persistence backend for trained artifacts.
type StoreConfig struct {
	// Backend selects the store type: "json" or "sqlite".
	Backend string `json:"backend"`
	// PatternsPath is the pattern set file location (json backend).
	PatternsPath string `json:"patterns_path"`
	// TreePath is the tree model file location (json backend).
	TreePath string `json:"tree_path"`
	// SQLitePath is the database file location (sqlite backend).
	SQLitePath string `json:"sqlite_path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "json"
	}
	if c.PatternsPath == "" {
		c.PatternsPath = "reimbursement_patterns.json"
	}
	if c.TreePath == "" {
		c.TreePath = "decision_tree.json"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "reimburse.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	if c.Backend != "json" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown store backend %s", c.Backend)
	}
	return nil
}

// EngineConfig selects the default prediction engine.
type EngineConfig struct {
	// Default selects the engine used when no override is given: "pattern"
	// or "tree".
	Default string `json:"default"`
}

// SetDefaults applies sane defaults.
func (c *EngineConfig) SetDefaults() {
	if c.Default == "" {
		c.Default = "pattern"
	}
}

// Validate checks mandatory fields.
func (c EngineConfig) Validate() error {
	if c.Default != "pattern" && c.Default != "tree" {
		return fmt.Errorf("unknown engine %s", c.Default)
	}
	return nil
}

// HTTPConfig holds the serve-mode listener settings.
type HTTPConfig struct {
	Address string `json:"address"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

// Load reads the configuration at path. A missing file yields the default
// configuration so the CLI works standalone.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.setDefaults()
		return &cfg, nil
	}
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("RB_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "rb_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	c.Dataset.SetDefaults()
	c.Store.SetDefaults()
	c.Engine.SetDefaults()
	c.HTTP.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
}
