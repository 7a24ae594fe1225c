package kvstore

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saiset-co/catalog-service/cache"
	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const redisOperationTimeout = 3 * time.Second

// RedisStore maps the store onto plain redis strings under KeyPrefix.
type RedisStore struct {
	ctx    context.Context
	client redis.UniversalClient
	logger types.Logger
	prefix string
	state  atomic.Value
}

func NewRedisStore(ctx context.Context, logger types.Logger, params interface{}) (*RedisStore, error) {
	config := cache.DefaultRedisConfig()
	config.KeyPrefix = "catalog-kv"

	if params != nil {
		if err := utils.UnmarshalConfig(params, config); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis store config")
		}
	}

	client, err := cache.NewRedisClient(ctx, config)
	if err != nil {
		return nil, types.Errorf(types.ErrStoreConnectionFailed, "%v", err)
	}

	return newRedisStore(ctx, logger, client, config.KeyPrefix), nil
}

func newRedisStore(ctx context.Context, logger types.Logger, client redis.UniversalClient, prefix string) *RedisStore {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	s := &RedisStore{
		ctx:    ctx,
		client: client,
		logger: logger,
		prefix: prefix,
	}
	s.state.Store(StateStopped)
	return s
}

func (s *RedisStore) Type() string {
	return "redis"
}

func (s *RedisStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(s.ctx, redisOperationTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.Errorf(types.ErrStoreOperationFailed, "get %s: %v", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(s.ctx, redisOperationTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return types.Errorf(types.ErrStoreOperationFailed, "set %s: %v", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(key string) error {
	ctx, cancel := context.WithTimeout(s.ctx, redisOperationTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return types.Errorf(types.ErrStoreOperationFailed, "remove %s: %v", key, err)
	}
	return nil
}

func (s *RedisStore) Keys() ([]string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, redisOperationTimeout)
	defer cancel()

	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, types.Errorf(types.ErrStoreOperationFailed, "keys: %v", err)
	}
	return keys, nil
}

func (s *RedisStore) Start() error {
	if !s.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServiceIsRunning
	}
	return nil
}

func (s *RedisStore) Stop() error {
	if !s.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServiceIsNotRunning
	}
	return s.client.Close()
}

func (s *RedisStore) IsRunning() bool {
	return s.state.Load().(State) == StateRunning
}
