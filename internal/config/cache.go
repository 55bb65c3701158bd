package config

import "time"

// CacheConfig defines the timetable cache.  Prefix namespaces the per-section
// keys.  StaleAfter bounds how old a cached timetable may be and still be
// served when the backend is unreachable; zero keeps the unbounded default.
type CacheConfig struct {
	Prefix     string
	StaleAfter time.Duration
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Prefix:     getenv("CACHE_PREFIX", "cs_timetable_cache"),
		StaleAfter: envDur("CACHE_STALE_AFTER", 0),
	}
}
