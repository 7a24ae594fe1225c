package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
)

type Creator func(ctx context.Context, logger types.Logger, config *types.CacheConfig) (types.CacheManager, error)

var customCacheCreators = sync.Map{}

func RegisterCacheManager(cacheType string, creator Creator) {
	customCacheCreators.Store(cacheType, creator)
}

func NewCacheManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) (types.CacheManager, error) {
	cacheConfig := config.GetConfig().Cache

	if cacheConfig == nil || !cacheConfig.Enabled {
		return nil, types.ErrCacheIsDisabled
	}

	var impl types.CacheManager
	var err error

	switch cacheConfig.Type {
	case "memory":
		impl, err = NewMemoryCache(ctx, logger, cacheConfig)
	case "redis":
		impl, err = NewRedisCache(ctx, logger, cacheConfig)
	default:
		if creator, exists := customCacheCreators.Load(cacheConfig.Type); exists {
			impl, err = creator.(Creator)(ctx, logger, cacheConfig)
		} else {
			return nil, types.Errorf(types.ErrCacheTypeUnknown, "type: %s", cacheConfig.Type)
		}
	}

	if err != nil {
		return nil, err
	}

	logger.Info("Cache manager initialized", zap.String("type", impl.Type()))

	return NewInstrumented(logger, metrics, impl), nil
}

type instrumentedCacheManager struct {
	impl    types.CacheManager
	logger  types.Logger
	metrics types.MetricsManager
}

// NewInstrumented wraps impl so every operation is counted and timed.
func NewInstrumented(logger types.Logger, metrics types.MetricsManager, impl types.CacheManager) types.CacheManager {
	return &instrumentedCacheManager{
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}
}

func (icm *instrumentedCacheManager) Type() string {
	return icm.impl.Type()
}

func (icm *instrumentedCacheManager) Get(key string) (interface{}, bool) {
	start := time.Now()
	value, exists := icm.impl.Get(key)

	result := "miss"
	if exists {
		result = "hit"
	}

	icm.recordMetric("get", result, time.Since(start))
	return value, exists
}

func (icm *instrumentedCacheManager) Set(key string, value interface{}, ttl time.Duration) {
	start := time.Now()
	icm.impl.Set(key, value, ttl)
	icm.recordMetric("set", "success", time.Since(start))
}

func (icm *instrumentedCacheManager) Delete(key string) bool {
	start := time.Now()
	removed := icm.impl.Delete(key)

	result := "absent"
	if removed {
		result = "removed"
	}

	icm.recordMetric("delete", result, time.Since(start))
	return removed
}

func (icm *instrumentedCacheManager) Clear() {
	start := time.Now()
	icm.impl.Clear()
	icm.recordMetric("clear", "success", time.Since(start))
	icm.updateEntries()
}

func (icm *instrumentedCacheManager) Cleanup() int {
	start := time.Now()
	removed := icm.impl.Cleanup()
	icm.recordMetric("cleanup", "success", time.Since(start))
	icm.metrics.Counter("cache_expired_total", map[string]string{"backend": icm.impl.Type()}).Add(float64(removed))
	icm.updateEntries()
	return removed
}

func (icm *instrumentedCacheManager) InvalidatePrefix(prefix string) int {
	start := time.Now()
	removed := icm.impl.InvalidatePrefix(prefix)
	icm.recordMetric("invalidate", "success", time.Since(start))

	icm.logger.Debug("Cache prefix invalidated", zap.String("prefix", prefix), zap.Int("removed", removed))
	return removed
}

func (icm *instrumentedCacheManager) Len() int {
	return icm.impl.Len()
}

func (icm *instrumentedCacheManager) Stats() types.CacheStats {
	return icm.impl.Stats()
}

func (icm *instrumentedCacheManager) Start() error {
	start := time.Now()
	err := icm.impl.Start()

	result := "success"
	if err != nil {
		result = "error"
	}

	icm.recordMetric("start", result, time.Since(start))
	return err
}

func (icm *instrumentedCacheManager) Stop() error {
	return icm.impl.Stop()
}

func (icm *instrumentedCacheManager) IsRunning() bool {
	return icm.impl.IsRunning()
}

func (icm *instrumentedCacheManager) updateEntries() {
	icm.metrics.Gauge("cache_entries", map[string]string{"backend": icm.impl.Type()}).Set(float64(icm.impl.Len()))
}

func (icm *instrumentedCacheManager) recordMetric(operation, result string, duration time.Duration) {
	icm.metrics.Counter("cache_operations_total", map[string]string{
		"backend":   icm.impl.Type(),
		"operation": operation,
		"result":    result,
	}).Inc()

	icm.metrics.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"backend": icm.impl.Type(), "operation": operation},
	).Observe(duration.Seconds())
}
