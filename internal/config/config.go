// Package config loads the service configuration from config.toml, an
// optional config.<PATROL_ENV>.toml overlay, and PATROL_* environment
// variables, in that order of precedence.
package config

import (
	_ "time/tzdata"

	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/workflow"
	"github.com/JaimeStill/patrol/pkg/database"
	"github.com/JaimeStill/patrol/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvPatrolEnv             = "PATROL_ENV"
	EnvPatrolShutdownTimeout = "PATROL_SHUTDOWN_TIMEOUT"
	EnvPatrolVersion         = "PATROL_VERSION"
	EnvPatrolTimeZone        = "PATROL_TIME_ZONE"
)

var databaseEnv = &database.Env{
	Host:            "PATROL_DB_HOST",
	Port:            "PATROL_DB_PORT",
	Name:            "PATROL_DB_NAME",
	User:            "PATROL_DB_USER",
	Password:        "PATROL_DB_PASSWORD",
	SSLMode:         "PATROL_DB_SSL_MODE",
	MaxOpenConns:    "PATROL_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PATROL_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PATROL_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PATROL_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "PATROL_STORAGE_CONTAINER_NAME",
	ConnectionString: "PATROL_STORAGE_CONNECTION_STRING",
	Prefix:           "PATROL_STORAGE_PREFIX",
	MaxListSize:      "PATROL_STORAGE_MAX_LIST_SIZE",
}

var inferenceEnv = &inference.Env{
	BaseURL:           "PATROL_INFERENCE_BASE_URL",
	APIKeys:           "PATROL_INFERENCE_API_KEYS",
	Model:             "PATROL_INFERENCE_MODEL",
	FallbackModel:     "PATROL_INFERENCE_FALLBACK_MODEL",
	Timeout:           "PATROL_INFERENCE_TIMEOUT",
	RequestsPerMinute: "PATROL_INFERENCE_REQUESTS_PER_MINUTE",
}

var screeningEnv = &workflow.Env{
	BulkSize:            "PATROL_SCREENING_BULK_SIZE",
	Concurrency:         "PATROL_SCREENING_CONCURRENCY",
	SlowConcurrency:     "PATROL_SCREENING_SLOW_CONCURRENCY",
	MaxTextLength:       "PATROL_SCREENING_MAX_TEXT_LENGTH",
	WavePacing:          "PATROL_SCREENING_WAVE_PACING",
	RefineConcurrency:   "PATROL_SCREENING_REFINE_CONCURRENCY",
	MaxRateLimitRetries: "PATROL_SCREENING_MAX_RATE_LIMIT_RETRIES",
	BackoffCeiling:      "PATROL_SCREENING_BACKOFF_CEILING",
}

// Config is the root configuration for the Patrol service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	API             APIConfig        `toml:"api"`
	Inference       inference.Config `toml:"inference"`
	Screening       workflow.Config  `toml:"screening"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
	TimeZone        string           `toml:"time_zone"`
}

// Env returns the PATROL_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvPatrolEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Location returns the zone export timestamps are rendered in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	return LoadFile(BaseConfigFile)
}

// LoadFile is Load with an explicit base config path. A missing file is
// not an error.
func LoadFile(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// LoadScreening reads config like LoadFile but finalizes only the sections
// an in-process screening run needs: inference, screening, and time zone.
// Server, database, storage, and API sections are left as read.
func LoadScreening(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	cfg.loadDefaults()
	cfg.loadEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	if err := cfg.Inference.Finalize(inferenceEnv); err != nil {
		return nil, fmt.Errorf("finalize config: inference: %w", err)
	}
	if err := cfg.Screening.Finalize(screeningEnv); err != nil {
		return nil, fmt.Errorf("finalize config: screening: %w", err)
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.TimeZone != "" {
		c.TimeZone = overlay.TimeZone
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Inference.Merge(&overlay.Inference)
	c.Screening.Merge(&overlay.Screening)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Inference.Finalize(inferenceEnv); err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	if err := c.Screening.Finalize(screeningEnv); err != nil {
		return fmt.Errorf("screening: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.TimeZone == "" {
		c.TimeZone = "Asia/Tokyo"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvPatrolShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvPatrolVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvPatrolTimeZone); v != "" {
		c.TimeZone = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid time_zone: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvPatrolEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
