package workflow

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the screening section: batch shape, pacing, and retry bounds.
// Durations are strings parsed with time.ParseDuration.
type Config struct {
	BulkSize        int    `toml:"bulk_size"`
	Concurrency     int    `toml:"concurrency"`
	SlowConcurrency int    `toml:"slow_concurrency"`
	MaxTextLength   int    `toml:"max_text_length"`
	StartupJitter   string `toml:"startup_jitter"`
	WavePacing      string `toml:"wave_pacing"`
	SlowWavePacing  string `toml:"slow_wave_pacing"`
	WaveJitter      string `toml:"wave_jitter"`

	RefineConcurrency int    `toml:"refine_concurrency"`
	RefinePacing      string `toml:"refine_pacing"`
	RefineJitter      string `toml:"refine_jitter"`

	BackoffBase         string  `toml:"backoff_base"`
	BackoffFactor       float64 `toml:"backoff_factor"`
	BackoffJitter       string  `toml:"backoff_jitter"`
	BackoffCeiling      string  `toml:"backoff_ceiling"`
	MaxRateLimitRetries int     `toml:"max_rate_limit_retries"`
	MaxTransientRetries int     `toml:"max_transient_retries"`
	TransientDelay      string  `toml:"transient_delay"`
	TransientJitter     string  `toml:"transient_jitter"`
}

// Env maps config fields to environment variable names for override injection.
// Only the knobs operators tune at deploy time are exposed.
type Env struct {
	BulkSize            string
	Concurrency         string
	SlowConcurrency     string
	MaxTextLength       string
	WavePacing          string
	RefineConcurrency   string
	MaxRateLimitRetries string
	BackoffCeiling      string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	mergeInt(&c.BulkSize, overlay.BulkSize)
	mergeInt(&c.Concurrency, overlay.Concurrency)
	mergeInt(&c.SlowConcurrency, overlay.SlowConcurrency)
	mergeInt(&c.MaxTextLength, overlay.MaxTextLength)
	mergeString(&c.StartupJitter, overlay.StartupJitter)
	mergeString(&c.WavePacing, overlay.WavePacing)
	mergeString(&c.SlowWavePacing, overlay.SlowWavePacing)
	mergeString(&c.WaveJitter, overlay.WaveJitter)
	mergeInt(&c.RefineConcurrency, overlay.RefineConcurrency)
	mergeString(&c.RefinePacing, overlay.RefinePacing)
	mergeString(&c.RefineJitter, overlay.RefineJitter)
	mergeString(&c.BackoffBase, overlay.BackoffBase)
	if overlay.BackoffFactor != 0 {
		c.BackoffFactor = overlay.BackoffFactor
	}
	mergeString(&c.BackoffJitter, overlay.BackoffJitter)
	mergeString(&c.BackoffCeiling, overlay.BackoffCeiling)
	mergeInt(&c.MaxRateLimitRetries, overlay.MaxRateLimitRetries)
	mergeInt(&c.MaxTransientRetries, overlay.MaxTransientRetries)
	mergeString(&c.TransientDelay, overlay.TransientDelay)
	mergeString(&c.TransientJitter, overlay.TransientJitter)
}

// RunConfig resolves the section into the settings for one run. Slow mode
// swaps in the slow-mode concurrency and wave pacing.
func (c *Config) RunConfig(model, fallback string, slow bool) RunConfig {
	rc := RunConfig{
		Model:             model,
		FallbackModel:     fallback,
		BulkSize:          c.BulkSize,
		Concurrency:       c.Concurrency,
		StartupJitter:     duration(c.StartupJitter),
		WavePacing:        duration(c.WavePacing),
		WaveJitter:        duration(c.WaveJitter),
		RefineConcurrency: c.RefineConcurrency,
		RefinePacing:      duration(c.RefinePacing),
		RefineJitter:      duration(c.RefineJitter),
		Retry: RetryConfig{
			BackoffBase:         duration(c.BackoffBase),
			BackoffFactor:       c.BackoffFactor,
			BackoffJitter:       duration(c.BackoffJitter),
			BackoffCeiling:      duration(c.BackoffCeiling),
			MaxRateLimitRetries: c.MaxRateLimitRetries,
			MaxTransientRetries: c.MaxTransientRetries,
			TransientDelay:      duration(c.TransientDelay),
			TransientJitter:     duration(c.TransientJitter),
		},
	}

	if slow {
		rc.Concurrency = c.SlowConcurrency
		rc.WavePacing = duration(c.SlowWavePacing)
	}

	return rc
}

func (c *Config) loadDefaults() {
	setInt(&c.BulkSize, 30)
	setInt(&c.Concurrency, 3)
	setInt(&c.SlowConcurrency, 2)
	setInt(&c.MaxTextLength, 500)
	setString(&c.StartupJitter, "2s")
	setString(&c.WavePacing, "300ms")
	setString(&c.SlowWavePacing, "1500ms")
	setString(&c.WaveJitter, "500ms")
	setInt(&c.RefineConcurrency, 5)
	setString(&c.RefinePacing, "500ms")
	setString(&c.RefineJitter, "500ms")
	setString(&c.BackoffBase, "1s")
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 1.5
	}
	setString(&c.BackoffJitter, "2s")
	setString(&c.BackoffCeiling, "30s")
	setInt(&c.MaxRateLimitRetries, 10)
	setInt(&c.MaxTransientRetries, 3)
	setString(&c.TransientDelay, "2s")
	setString(&c.TransientJitter, "2s")
}

func (c *Config) loadEnv(env *Env) {
	envInt(env.BulkSize, &c.BulkSize)
	envInt(env.Concurrency, &c.Concurrency)
	envInt(env.SlowConcurrency, &c.SlowConcurrency)
	envInt(env.MaxTextLength, &c.MaxTextLength)
	envString(env.WavePacing, &c.WavePacing)
	envInt(env.RefineConcurrency, &c.RefineConcurrency)
	envInt(env.MaxRateLimitRetries, &c.MaxRateLimitRetries)
	envString(env.BackoffCeiling, &c.BackoffCeiling)
}

func (c *Config) validate() error {
	durations := map[string]string{
		"startup_jitter":   c.StartupJitter,
		"wave_pacing":      c.WavePacing,
		"slow_wave_pacing": c.SlowWavePacing,
		"wave_jitter":      c.WaveJitter,
		"refine_pacing":    c.RefinePacing,
		"refine_jitter":    c.RefineJitter,
		"backoff_base":     c.BackoffBase,
		"backoff_jitter":   c.BackoffJitter,
		"backoff_ceiling":  c.BackoffCeiling,
		"transient_delay":  c.TransientDelay,
		"transient_jitter": c.TransientJitter,
	}
	for name, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.BulkSize <= 0 || c.Concurrency <= 0 || c.SlowConcurrency <= 0 || c.RefineConcurrency <= 0 {
		return fmt.Errorf("bulk_size and concurrency settings must be positive")
	}
	if c.BackoffFactor < 1 {
		return fmt.Errorf("backoff_factor must be at least 1")
	}
	return nil
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func setInt(dst *int, v int) {
	if *dst <= 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if name == "" {
		return
	}
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(name string, dst *string) {
	if name == "" {
		return
	}
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}
