// Package config loads the feedd daemon configuration from file and
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sheet   SheetConfig   `mapstructure:"sheet"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SheetConfig holds the spreadsheet source configuration.
type SheetConfig struct {
	BaseURL       string        `mapstructure:"base_url"` // Empty means the Google Sheets API.
	SpreadsheetID string        `mapstructure:"spreadsheet_id"`
	Sheet         string        `mapstructure:"sheet"`
	Column        string        `mapstructure:"column"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// FeedConfig holds the feed controller tuning.
type FeedConfig struct {
	BatchSize   int `mapstructure:"batch_size"`
	PageSize    int `mapstructure:"page_size"`
	InitialLoad int `mapstructure:"initial_load"`
}

// RedisConfig holds the optional Redis cache configuration.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig holds local persistence configuration.
type StorageConfig struct {
	BucketURL   string `mapstructure:"bucket_url"` // gocloud blob URL, e.g. file:///var/lib/feedd/items
	HistoryPath string `mapstructure:"history_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Sheet: SheetConfig{
			Sheet:   "Sheet1",
			Column:  "A",
			Timeout: 15 * time.Second,
		},
		Feed: FeedConfig{
			BatchSize:   5,
			PageSize:    100,
			InitialLoad: 10,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Storage: StorageConfig{
			BucketURL:   "file://./items",
			HistoryPath: "feedd-history.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path (optional; empty means the defaults plus
// environment overrides) and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FEEDD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.Sheet.SpreadsheetID == "" {
		return fmt.Errorf("sheet.spreadsheet_id is required")
	}
	if c.Feed.BatchSize <= 0 {
		return fmt.Errorf("feed.batch_size must be positive, got %d", c.Feed.BatchSize)
	}
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize)
	}
	if c.Feed.InitialLoad <= 0 {
		return fmt.Errorf("feed.initial_load must be positive, got %d", c.Feed.InitialLoad)
	}
	if c.Storage.BucketURL == "" {
		return fmt.Errorf("storage.bucket_url is required")
	}
	return nil
}
