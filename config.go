package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr     string `yaml:"addr" toml:"addr"`
		Timezone string `yaml:"timezone" toml:"timezone"`
	} `yaml:"server" toml:"server"`

	Logging struct {
		File  string `yaml:"file" toml:"file"`
		Level string `yaml:"level" toml:"level"`
	} `yaml:"logging" toml:"logging"`

	Database databaseConfig `yaml:"database" toml:"database"`

	TSDB struct {
		Path             string `yaml:"path" toml:"path"`
		CompressionLevel int    `yaml:"compression_level" toml:"compression_level"`
	} `yaml:"tsdb" toml:"tsdb"`

	Cache struct {
		Capacity int      `yaml:"capacity" toml:"capacity"`
		TTL      Duration `yaml:"ttl" toml:"ttl"`
	} `yaml:"cache" toml:"cache"`

	Broadcast struct {
		Workers    int      `yaml:"workers" toml:"workers"`
		Queue      int      `yaml:"queue" toml:"queue"`
		Timeout    Duration `yaml:"timeout" toml:"timeout"`
		RetryDelay Duration `yaml:"retry_delay" toml:"retry_delay"`
		MaxRetries int      `yaml:"max_retries" toml:"max_retries"`
	} `yaml:"broadcast" toml:"broadcast"`
}

// Duration reads "30s" / "10m" style values from either config format.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func defaultConfig() Config {
	var cfg Config
	cfg.Server.Addr = ":8869"
	cfg.Server.Timezone = "UTC"
	cfg.Logging.Level = "info"
	cfg.Database.Driver = "mysql"
	cfg.Database.SQLitePath = "reports.db"
	cfg.TSDB.Path = "data/tsdb"
	cfg.TSDB.CompressionLevel = 3
	cfg.Cache.Capacity = 256
	cfg.Cache.TTL = Duration(time.Minute)
	cfg.Broadcast.Workers = 4
	cfg.Broadcast.Queue = 256
	cfg.Broadcast.Timeout = Duration(10 * time.Second)
	cfg.Broadcast.RetryDelay = Duration(10 * time.Minute)
	cfg.Broadcast.MaxRetries = 3
	return cfg
}

// loadConfig reads a yaml or toml file (by extension) over the defaults and
// applies REPORTS_* environment overrides. A missing file is not an error
// when path is empty.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if _, err := toml.Decode(string(data), &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REPORTS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REPORTS_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REPORTS_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REPORTS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("server.timezone: %w", err)
	}
	if c.TSDB.CompressionLevel < 1 || c.TSDB.CompressionLevel > 4 {
		return fmt.Errorf("tsdb.compression_level must be between 1 and 4")
	}
	return nil
}

func (c Config) location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
