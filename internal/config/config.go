package config

import (
	"fmt"
	"os"

	"IndexForge/internal/model"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Index struct {
		ID        string        `yaml:"id"`
		Benchmark string        `yaml:"benchmark"`
		Universe  []model.Asset `yaml:"universe"`
	} `yaml:"index"`
	Strategy model.StrategyConfig `yaml:"strategy"`
	DataSource struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"data_source"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	SnapshotPath string `yaml:"snapshot_path"`
	Proxy        string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("INDEX_ID"); v != "" {
		cfg.Index.ID = v
	}

	// Defaults
	if cfg.Index.ID == "" {
		cfg.Index.ID = "synthetic-1"
	}
	if cfg.Index.Benchmark == "" {
		cfg.Index.Benchmark = "SPX500"
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 30 22 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/indexforge.db"
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = "data/allocation_snapshot.json"
	}
	if cfg.Strategy.Frequency == "" {
		cfg.Strategy.Frequency = model.FrequencyWeekly
	}
	if cfg.Strategy.Method == "" {
		cfg.Strategy.Method = model.MethodEqual
	}
	if cfg.Strategy.MaxWeight == 0 {
		cfg.Strategy.MaxWeight = 0.35
	}
	if cfg.Strategy.TargetAssetCount == 0 {
		cfg.Strategy.TargetAssetCount = len(cfg.Index.Universe)
	}

	return cfg, nil
}

// Validate checks that all required fields are set and the strategy is satisfiable.
func (c *Config) Validate() error {
	if len(c.Index.Universe) == 0 {
		return fmt.Errorf("index.universe must list at least one asset")
	}
	for _, a := range c.Index.Universe {
		if a.Symbol == "" {
			return fmt.Errorf("index.universe entries require a symbol")
		}
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	return nil
}
