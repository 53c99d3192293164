// Package config loads the engine-wide configuration: inline-payload
// threshold, default erasure shape, cache sizing, and migration tuning.
// It follows a "plain struct + Default()/applyDefaults()" convention,
// overridable from YAML or from flags in cmd/objectcored.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of options recognized by the engine.
type Config struct {
	// Chunk & metadata layout
	InlineThreshold int64 `yaml:"inline_threshold"`

	// Erasure codec defaults
	DefaultECK int `yaml:"default_ec_k"`
	DefaultECM int `yaml:"default_ec_m"`

	// Multi-disk quorum I/O
	VerifyChecksums bool `yaml:"verify_checksums"`

	// Location registry
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	EnableCache bool          `yaml:"enable_cache"`

	// Migration engine
	MigrationWorkerCount      int           `yaml:"migration_worker_count"`
	MigrationQueueCapacity    int           `yaml:"migration_queue_capacity"`
	MigrationRetryMax         int           `yaml:"migration_retry_max"`
	ThrottleRateBps           int64         `yaml:"throttle_rate_bps"`
	ThrottleBurstBytes        int64         `yaml:"throttle_burst_bytes"`
	CheckpointIntervalObjects int           `yaml:"checkpoint_interval_objects"`
	CheckpointIntervalSeconds time.Duration `yaml:"checkpoint_interval_seconds"`

	// Placement
	VnodesPerNode int `yaml:"vnodes_per_node"`
}

// Default returns the configuration with every documented default value
// applied: 150 vnodes, 16 migration workers, 10,000-deep queue, 1,000,000
// registry cache entries with a 5-minute TTL.
func Default() *Config {
	return &Config{
		InlineThreshold: 128 * 1024,
		DefaultECK:      4,
		DefaultECM:      2,
		VerifyChecksums: true,

		CacheSize:   1_000_000,
		CacheTTL:    5 * time.Minute,
		EnableCache: true,

		MigrationWorkerCount:      16,
		MigrationQueueCapacity:    10_000,
		MigrationRetryMax:         3,
		ThrottleRateBps:           0, // 0 = unthrottled
		ThrottleBurstBytes:        64 * 1024 * 1024,
		CheckpointIntervalObjects: 1000,
		CheckpointIntervalSeconds: 5 * time.Minute,

		VnodesPerNode: 150,
	}
}

// applyDefaults fills any zero-valued numeric or duration field of cfg
// with its documented default, so a partially-specified YAML document
// still yields a usable configuration. Boolean fields are not touched
// here; Load starts from Default() so they keep their defaults when the
// file leaves them unset.
func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.InlineThreshold == 0 {
		cfg.InlineThreshold = d.InlineThreshold
	}
	if cfg.DefaultECK == 0 {
		cfg.DefaultECK = d.DefaultECK
	}
	if cfg.DefaultECM == 0 {
		cfg.DefaultECM = d.DefaultECM
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = d.CacheSize
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = d.CacheTTL
	}
	if cfg.MigrationWorkerCount == 0 {
		cfg.MigrationWorkerCount = d.MigrationWorkerCount
	}
	if cfg.MigrationQueueCapacity == 0 {
		cfg.MigrationQueueCapacity = d.MigrationQueueCapacity
	}
	if cfg.MigrationRetryMax == 0 {
		cfg.MigrationRetryMax = d.MigrationRetryMax
	}
	if cfg.ThrottleBurstBytes == 0 {
		cfg.ThrottleBurstBytes = d.ThrottleBurstBytes
	}
	if cfg.CheckpointIntervalObjects == 0 {
		cfg.CheckpointIntervalObjects = d.CheckpointIntervalObjects
	}
	if cfg.CheckpointIntervalSeconds == 0 {
		cfg.CheckpointIntervalSeconds = d.CheckpointIntervalSeconds
	}
	if cfg.VnodesPerNode == 0 {
		cfg.VnodesPerNode = d.VnodesPerNode
	}
}

// Load reads a YAML configuration file from path, applying defaults to any
// field the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Validate checks that the configuration describes a satisfiable erasure
// shape and sane resource bounds (1 ≤ K,M ≤ 16).
func (c *Config) Validate() error {
	if c.DefaultECK < 1 || c.DefaultECK > 16 {
		return fmt.Errorf("config: default_ec_k must be in [1,16], got %d", c.DefaultECK)
	}
	if c.DefaultECM < 1 || c.DefaultECM > 16 {
		return fmt.Errorf("config: default_ec_m must be in [1,16], got %d", c.DefaultECM)
	}
	if c.InlineThreshold < 0 {
		return fmt.Errorf("config: inline_threshold must be >= 0")
	}
	if c.MigrationWorkerCount < 1 {
		return fmt.Errorf("config: migration_worker_count must be >= 1")
	}
	return nil
}
