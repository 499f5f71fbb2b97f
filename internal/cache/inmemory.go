package cache

import (
	"context"
	"time"

	"github.com/flexprice/membership/internal/config"
	"github.com/flexprice/membership/internal/logger"
	goCache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 5 * time.Minute

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache.
// Entries default to the snapshot refresh interval so sessions never see data older than that.
type InMemoryCache struct {
	cache  *goCache.Cache
	logger *logger.Logger
}

// NewInMemoryCache creates the process local cache
func NewInMemoryCache(cfg *config.Configuration, logger *logger.Logger) Cache {
	ttl := cfg.Entitlement.SnapshotRefreshInterval
	if ttl <= 0 {
		ttl = config.DefaultEntitlementConfig().SnapshotRefreshInterval
	}
	logger.Debugw("initializing in-memory cache", "default_expiration", ttl.String())

	return &InMemoryCache{
		cache:  goCache.New(ttl, DefaultCleanupInterval),
		logger: logger,
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	return c.cache.Get(key)
}

func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.cache.Delete(key)
}

func (c *InMemoryCache) Flush(_ context.Context) {
	c.cache.Flush()
}
