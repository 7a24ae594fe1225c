package cache

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

type RedisConfig struct {
	Host               string         `json:"host"`
	Port               int            `json:"port"`
	Password           string         `json:"password"`
	DB                 int            `json:"db"`
	PoolSize           int            `json:"pool_size"`
	MinIdleConnections int            `json:"min_idle_connections"`
	DialTimeout        types.Duration `json:"dial_timeout"`
	ReadTimeout        types.Duration `json:"read_timeout"`
	WriteTimeout       types.Duration `json:"write_timeout"`
	KeyPrefix          string         `json:"key_prefix"`
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:               "localhost",
		Port:               6379,
		PoolSize:           10,
		MinIdleConnections: 2,
		DialTimeout:        types.Duration(5 * time.Second),
		ReadTimeout:        types.Duration(3 * time.Second),
		WriteTimeout:       types.Duration(3 * time.Second),
		KeyPrefix:          "catalog",
	}
}

// NewRedisClient dials and pings a redis server.
func NewRedisClient(ctx context.Context, config *RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConnections,
		DialTimeout:  config.DialTimeout.Std(),
		ReadTimeout:  config.ReadTimeout.Std(),
		WriteTimeout: config.WriteTimeout.Std(),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, types.WrapError(err, "failed to connect to redis")
	}

	return client, nil
}

type redisEntry struct {
	Value    interface{} `json:"value"`
	StoredAt int64       `json:"stored_at"`
	TTL      int64       `json:"ttl"`
}

// RedisCache keeps entries in redis under KeyPrefix. Redis expires keys on its
// own, so Cleanup has nothing to sweep. Values come back as generic JSON.
type RedisCache struct {
	ctx        context.Context
	logger     types.Logger
	config     *RedisConfig
	client     redis.UniversalClient
	defaultTTL time.Duration
	state      atomic.Value
	hits       uint64
	misses     uint64
	sets       uint64
	deletes    uint64
}

func NewRedisCache(ctx context.Context, logger types.Logger, config *types.CacheConfig) (*RedisCache, error) {
	redisConfig := DefaultRedisConfig()

	if config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, redisConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis cache config")
		}
	}

	client, err := NewRedisClient(ctx, redisConfig)
	if err != nil {
		return nil, types.Errorf(types.ErrCacheConnectionFailed, "%v", err)
	}

	return newRedisCache(ctx, logger, redisConfig, client, config.DefaultTTL), nil
}

func newRedisCache(ctx context.Context, logger types.Logger, config *RedisConfig, client redis.UniversalClient, defaultTTL time.Duration) *RedisCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	r := &RedisCache{
		ctx:        ctx,
		logger:     logger,
		config:     config,
		client:     client,
		defaultTTL: defaultTTL,
	}
	r.state.Store(StateStopped)
	return r
}

func (r *RedisCache) Type() string {
	return "redis"
}

func (r *RedisCache) Get(key string) (interface{}, bool) {
	fullKey := r.buildFullKey(key)

	result, err := r.client.Get(r.ctx, fullKey).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Error("Failed to get cache entry", zap.String("key", key), zap.Error(err))
		}
		atomic.AddUint64(&r.misses, 1)
		return nil, false
	}

	var e redisEntry
	if err := utils.Unmarshal([]byte(result), &e); err != nil {
		r.logger.Error("Failed to unmarshal cache entry", zap.String("key", key), zap.Error(err))
		r.client.Del(r.ctx, fullKey)
		atomic.AddUint64(&r.misses, 1)
		return nil, false
	}

	if time.Now().UnixMilli()-e.StoredAt >= e.TTL {
		r.client.Del(r.ctx, fullKey)
		atomic.AddUint64(&r.misses, 1)
		return nil, false
	}

	atomic.AddUint64(&r.hits, 1)
	return e.Value, true
}

func (r *RedisCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl < 0 {
		ttl = r.defaultTTL
	}

	fullKey := r.buildFullKey(key)

	if ttl == 0 {
		r.client.Del(r.ctx, fullKey)
		return
	}

	data, err := utils.Marshal(&redisEntry{
		Value:    value,
		StoredAt: time.Now().UnixMilli(),
		TTL:      ttl.Milliseconds(),
	})
	if err != nil {
		r.logger.Error("Failed to marshal cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	if err := r.client.Set(r.ctx, fullKey, data, ttl).Err(); err != nil {
		r.logger.Error("Failed to set cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	atomic.AddUint64(&r.sets, 1)
}

func (r *RedisCache) Delete(key string) bool {
	removed, err := r.client.Del(r.ctx, r.buildFullKey(key)).Result()
	if err != nil {
		r.logger.Error("Failed to delete cache key", zap.String("key", key), zap.Error(err))
		return false
	}

	atomic.AddUint64(&r.deletes, uint64(removed))
	return removed > 0
}

func (r *RedisCache) Clear() {
	removed := r.deleteMatching(escapeGlob(r.buildFullKey("")) + "*")
	r.logger.Debug("Redis cache cleared", zap.Int("cleared_entries", removed))
}

func (r *RedisCache) Cleanup() int {
	return 0
}

func (r *RedisCache) InvalidatePrefix(prefix string) int {
	removed := r.deleteMatching(escapeGlob(r.buildFullKey(prefix)) + "*")
	atomic.AddUint64(&r.deletes, uint64(removed))
	return removed
}

func (r *RedisCache) Len() int {
	count := 0
	iter := r.client.Scan(r.ctx, 0, escapeGlob(r.buildFullKey(""))+"*", 100).Iterator()
	for iter.Next(r.ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		r.logger.Error("Failed to scan cache keys", zap.Error(err))
	}
	return count
}

func (r *RedisCache) Stats() types.CacheStats {
	return types.CacheStats{
		Entries: r.Len(),
		Hits:    atomic.LoadUint64(&r.hits),
		Misses:  atomic.LoadUint64(&r.misses),
		Sets:    atomic.LoadUint64(&r.sets),
		Deletes: atomic.LoadUint64(&r.deletes),
	}
}

func (r *RedisCache) Start() error {
	if !r.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrCacheIsRunning
	}

	r.logger.Info("Redis cache started", zap.String("key_prefix", r.config.KeyPrefix))
	return nil
}

func (r *RedisCache) Stop() error {
	if !r.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrCacheIsNotRunning
	}

	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis client", zap.Error(err))
		return types.WrapError(err, "failed to close redis client")
	}

	r.logger.Info("Redis cache closed successfully")
	return nil
}

func (r *RedisCache) IsRunning() bool {
	return r.state.Load().(State) == StateRunning
}

func (r *RedisCache) deleteMatching(pattern string) int {
	removed := 0
	iter := r.client.Scan(r.ctx, 0, pattern, 100).Iterator()

	batch := make([]string, 0, 100)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := r.client.Del(r.ctx, batch...).Result()
		if err != nil {
			r.logger.Error("Failed to delete cache keys", zap.Int("keys", len(batch)), zap.Error(err))
		}
		removed += int(n)
		batch = batch[:0]
	}

	for iter.Next(r.ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		r.logger.Error("Failed to scan cache keys", zap.String("pattern", pattern), zap.Error(err))
	}

	return removed
}

func (r *RedisCache) buildFullKey(key string) string {
	if r.config.KeyPrefix != "" {
		return fmt.Sprintf("%s:%s", r.config.KeyPrefix, key)
	}
	return key
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
