package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.  Only
// seat listings are cached; every reservation change bumps the generation
// counter stored under GenerationKey so stale availability is never served
// past the next write.
// When Enabled is false or no Redis client is configured, caching is
// disabled.  Methods lists the HTTP methods to cache.  TTL bounds the
// lifetime of an entry.  KeyStrategy picks which parts of the request make
// up the key: route, route_query, method_route_query or role_route_query.
// Prefix namespaces the keys and MaxBodyBytes caps the size of a stored
// response.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_ENABLED, CACHE_METHODS, CACHE_TTL,
// CACHE_KEY_STRATEGY, CACHE_PREFIX and CACHE_MAX_BODY_BYTES.  Defaults are
// used when variables are not set.  CACHE_METHODS is a comma separated list
// and its entries are upper-cased.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 15*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "role_route_query"),
		Prefix:       envStr("CACHE_PREFIX", "seatcache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

// GenerationKey is the redis key of the counter that namespaces cached
// responses.  The reservation service increments it after every write.
func (c CacheConfig) GenerationKey() string { return c.Prefix + ":gen" }

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
