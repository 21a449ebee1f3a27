package config

import (
	"strings"
	"time"
)

// CacheConfig drives the Redis response cache in front of /api.  Only the
// listed methods are cached; any other successful request clears every key
// under Prefix.  KeyStrategy is route, method_route, route_query (default)
// or method_route_query.  Bodies larger than MaxBodyBytes are not stored.
type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Methods      string        `mapstructure:"methods"` // comma separated, e.g. "GET,HEAD"
	TTL          time.Duration `mapstructure:"ttl"`
	KeyStrategy  string        `mapstructure:"key_strategy"`
	Prefix       string        `mapstructure:"prefix"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
}

// MethodSet returns the cached methods upper-cased.
func (c CacheConfig) MethodSet() map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(c.Methods, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			m[p] = true
		}
	}
	return m
}
