package inference

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds inference provider settings.
type Config struct {
	BaseURL           string   `toml:"base_url"`
	APIKeys           []string `toml:"api_keys"`
	Model             string   `toml:"model"`
	FallbackModel     string   `toml:"fallback_model"`
	Timeout           string   `toml:"timeout"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL           string
	APIKeys           string
	Model             string
	FallbackModel     string
	Timeout           string
	RequestsPerMinute string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
// API keys are optional here; runs may supply their own.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKeys != nil {
		c.APIKeys = overlay.APIKeys
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.FallbackModel != "" {
		c.FallbackModel = overlay.FallbackModel
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.RequestsPerMinute != 0 {
		c.RequestsPerMinute = overlay.RequestsPerMinute
	}
}

func (c *Config) loadDefaults() {
	if c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
	if c.FallbackModel == "" {
		c.FallbackModel = "gemini-2.0-flash"
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.APIKeys != "" {
		if v := os.Getenv(env.APIKeys); v != "" {
			c.APIKeys = strings.Split(v, ",")
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.FallbackModel != "" {
		if v := os.Getenv(env.FallbackModel); v != "" {
			c.FallbackModel = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	if env.RequestsPerMinute != "" {
		if v := os.Getenv(env.RequestsPerMinute); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.RequestsPerMinute = n
			}
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}
