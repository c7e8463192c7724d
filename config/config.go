package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version    string        `yaml:"version"`
	Projects   []string      `yaml:"projects"`
	StorageDir string        `yaml:"storage_dir,omitempty"`
	PolicyDir  string        `yaml:"policy_dir,omitempty"`
	Interval   time.Duration `yaml:"interval,omitempty"`
	Assets     Assets        `yaml:"assets,omitempty"`
}

// Assets toggles which asset types are synced
type Assets struct {
	Functions bool `yaml:"functions"`
	Buckets   bool `yaml:"buckets"`
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StorageDir == "" {
		c.StorageDir = "./kartta-data"
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Minute
	}
	if !c.Assets.Functions && !c.Assets.Buckets {
		c.Assets = Assets{Functions: true, Buckets: true}
	}
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if len(c.Projects) == 0 {
		return fmt.Errorf("at least one project is required")
	}
	for _, project := range c.Projects {
		if project == "" {
			return fmt.Errorf("project id must not be empty")
		}
	}
	return nil
}
