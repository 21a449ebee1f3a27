package config

import "time"

// RateLimitConfig configures the Redis token bucket.  KeyStrategy is one of
// ip, route or ip_route.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Capacity       int           `mapstructure:"capacity"`
	RefillTokens   int           `mapstructure:"refill_tokens"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
	TTL            time.Duration `mapstructure:"ttl"`
	KeyStrategy    string        `mapstructure:"key_strategy"`
	Prefix         string        `mapstructure:"prefix"`
	Debug          bool          `mapstructure:"debug"`
}

func (c *RateLimitConfig) normalize() {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	minTTL := 5 * c.RefillInterval
	if c.TTL < minTTL {
		c.TTL = minTTL
	}
}
