// Package config loads the server configuration from YAML, applies
// environment overrides and watches the file for runtime changes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"churnpredict/db"
	"churnpredict/events"
	"churnpredict/logging"
	"churnpredict/retention"
)

// DefaultPath is read when CHURN_CONFIG is unset. A missing default file is
// not an error.
const DefaultPath = "config.yaml"

// Config is the service configuration file.
type Config struct {
	HTTP      HTTPConfig       `yaml:"http"`
	Artifacts ArtifactsConfig  `yaml:"artifacts"`
	Log       logging.Config   `yaml:"log"`
	Database  db.Config        `yaml:"database"`
	Kafka     events.Config    `yaml:"kafka"`
	Cache     CacheConfig      `yaml:"cache"`
	Batch     BatchConfig      `yaml:"batch"`
	Retention retention.Policy `yaml:"retention"`
}

// HTTPConfig configures the listener and request limits.
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// ArtifactsConfig locates the trained artifact directory.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

type CacheConfig struct {
	// Size of the prediction cache in entries; 0 disables it.
	Size int `yaml:"size"`
}

// BatchConfig bounds batch prediction requests.
type BatchConfig struct {
	Parallelism int `yaml:"parallelism"`
	MaxRecords  int `yaml:"max_records"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           8080,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   1 << 20,
		},
		Artifacts: ArtifactsConfig{Dir: "artifacts"},
		Log:       logging.DefaultConfig(),
		Database:  db.Config{EnableWAL: true},
		Kafka:     events.Config{Topic: events.DefaultTopic, WriteTimeout: 5 * time.Second},
		Cache:     CacheConfig{Size: 1024},
		Batch:     BatchConfig{MaxRecords: 1000},
		Retention: retention.DefaultPolicy(),
	}
}

// Path returns the config file location, honouring CHURN_CONFIG.
func Path() string {
	if v := os.Getenv("CHURN_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads path over the defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CHURN_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHURN_HTTP_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("CHURN_ARTIFACTS_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v := os.Getenv("CHURN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CHURN_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CHURN_KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Kafka.Brokers = brokers
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.Artifacts.Dir == "" {
		return errors.New("artifacts.dir is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Cache.Size < 0 {
		return errors.New("cache.size must not be negative")
	}
	if c.Batch.Parallelism < 0 {
		return errors.New("batch.parallelism must not be negative")
	}
	if err := c.Retention.Validate(); err != nil {
		return fmt.Errorf("retention: %w", err)
	}
	return nil
}
