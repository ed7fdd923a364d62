// Package cache provides suiteprefs.Cache implementations: an in-process TTL cache and Redis.
package cache

import (
	"fmt"

	"github.com/CreativeUnicorns/suiteprefs"
)

var (
	_ suiteprefs.Cache = (*MemoryCache)(nil)
	_ suiteprefs.Cache = (*RedisCache)(nil)
)

// Options selects and configures a cache for Open.
type Options struct {
	Driver   string // "", "none", "memory" or "redis"
	Addr     string
	Password string
	DB       int
}

// Open returns the cache named by opts.Driver, or nil when caching is disabled.
func Open(opts Options) (suiteprefs.Cache, error) {
	switch opts.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryCache(), nil
	case "redis":
		c, err := NewRedisCache(opts.Addr, opts.Password, opts.DB)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache driver %q", suiteprefs.ErrInvalidInput, opts.Driver)
	}
}
