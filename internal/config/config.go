// Package config loads prunefang configuration from file, environment,
// and defaults.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Default configuration values.
var (
	// DefaultJobs is the default worker count.
	DefaultJobs = runtime.NumCPU()
)

const (
	// DefaultBackoffMin is the default initial idle backoff.
	DefaultBackoffMin = 500 * time.Microsecond

	// DefaultBackoffMax is the default idle backoff bound.
	DefaultBackoffMax = 20 * time.Millisecond

	// DefaultCacheEntries is the default verdict cache bound.
	DefaultCacheEntries = 1 << 16
)

// Sentinel validation errors.
var (
	// ErrInvalidJobs indicates a non-positive worker count.
	ErrInvalidJobs = errors.New("config: jobs must be positive")

	// ErrInvalidBackoff indicates backoff bounds that are not ordered.
	ErrInvalidBackoff = errors.New("config: backoff_max must be >= backoff_min")
)

// Config is the top-level configuration struct for prunefang.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Jobs        int           `mapstructure:"jobs"`
	BackoffMin  time.Duration `mapstructure:"backoff_min"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
	NoCache     bool          `mapstructure:"no_cache"`
	CacheSize   int           `mapstructure:"cache_size"`
	JournalDir  string        `mapstructure:"journal_dir"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
	Language    string        `mapstructure:"language"`
	Profile     string        `mapstructure:"profile"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidJobs, c.Jobs)
	}

	if c.BackoffMax < c.BackoffMin {
		return fmt.Errorf("%w: min=%s max=%s", ErrInvalidBackoff, c.BackoffMin, c.BackoffMax)
	}

	return nil
}
