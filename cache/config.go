package cache

import "time"

// Config exposes entry store configuration options for consumers of the
// cache. TTLs are per region: entities of different types can expire on
// different schedules, and a zero TTL means entries of that region never
// expire.
type Config struct {
	// Capacity defines the maximum number of entries each region can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards per region store for
	// concurrent access. Must be greater than 0.
	NumShards int

	// EvictionPercentage specifies what percentage of entries to evict when
	// a region reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the store reaps expired entries in
	// the background. Zero uses the backend default. Expiry is also checked
	// lazily on every read, so correctness does not depend on the reaper.
	EvictionInterval time.Duration

	// DefaultTTL applies to regions without an explicit entry in RegionTTLs.
	// Zero means entries never expire.
	DefaultTTL time.Duration

	// RegionTTLs overrides the TTL per entity type.
	RegionTTLs map[string]time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults: entries
// never expire and each region holds up to 10000 entries across 64 shards.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		EvictionPercentage: 10,
	}
}

// RegionTTL resolves the TTL for a region. Zero means no expiry.
func (c Config) RegionTTL(region string) time.Duration {
	if ttl, ok := c.RegionTTLs[region]; ok {
		return ttl
	}
	return c.DefaultTTL
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.DefaultTTL < 0 {
		return &ConfigError{Field: "DefaultTTL", Message: "must be non-negative"}
	}
	for region, ttl := range c.RegionTTLs {
		if ttl < 0 {
			return &ConfigError{Field: "RegionTTLs[" + region + "]", Message: "must be non-negative"}
		}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
