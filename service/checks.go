package service

import (
	"context"

	"github.com/saiset-co/catalog-service/cache"
	"github.com/saiset-co/catalog-service/types"
)

func (c *components) registerCheckers() {
	c.health.RegisterChecker("database", databaseChecker(c.database))
	c.health.RegisterChecker("cache", cacheChecker(c.cache))
	if c.store != nil {
		c.health.RegisterChecker("kv_store", storeChecker(c.store))
	}
}

func databaseChecker(db types.DatabaseManager) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		if err := db.Ping(ctx); err != nil {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: err.Error()}
		}
		return types.HealthCheck{Status: types.StatusHealthy, Message: "Database connection successful"}
	}
}

// cacheChecker round-trips a probe entry and reports the cache stats.
func cacheChecker(c types.CacheManager) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		stats := c.Stats()
		details := map[string]interface{}{
			"type":    c.Type(),
			"entries": stats.Entries,
			"hits":    stats.Hits,
			"misses":  stats.Misses,
		}

		if c.Type() == "noop" {
			return types.HealthCheck{Status: types.StatusHealthy, Message: "Cache disabled", Details: details}
		}

		c.Set(cache.HealthKey, "ok", types.DefaultTTL)
		if _, ok := c.Get(cache.HealthKey); !ok {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: "Cache probe was not readable", Details: details}
		}

		return types.HealthCheck{Status: types.StatusHealthy, Details: details}
	}
}

func storeChecker(store types.KeyValueStoreManager) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		keys, err := store.Keys()
		if err != nil {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: err.Error()}
		}
		return types.HealthCheck{
			Status:  types.StatusHealthy,
			Details: map[string]interface{}{"type": store.Type(), "keys": len(keys)},
		}
	}
}
