package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

// WithCache memoizes fn behind keyGen(arg) for ttl (types.DefaultTTL for the
// cache default). Concurrent misses on one key share a single call to fn,
// which runs detached from any one caller's cancellation; each caller still
// stops waiting when its own ctx is done. Errors from fn are returned to
// every waiter and never stored.
func WithCache[A, T any](c types.CacheManager, fn func(ctx context.Context, arg A) (T, error), keyGen func(arg A) string, ttl time.Duration) func(ctx context.Context, arg A) (T, error) {
	var group singleflight.Group

	return func(ctx context.Context, arg A) (T, error) {
		var zero T
		key := keyGen(arg)

		if value, ok := Lookup[T](c, key); ok {
			return value, nil
		}

		shared := context.WithoutCancel(ctx)
		results := group.DoChan(key, func() (interface{}, error) {
			if value, ok := Lookup[T](c, key); ok {
				return value, nil
			}

			value, err := fn(shared, arg)
			if err != nil {
				return nil, err
			}

			c.Set(key, value, ttl)
			return value, nil
		})

		select {
		case res := <-results:
			if res.Err != nil {
				return zero, res.Err
			}
			value, _ := res.Val.(T)
			return value, nil
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Lookup reads key as a T. Backends that serialize values hand back generic
// JSON, which is decoded into T; anything undecodable counts as a miss.
func Lookup[T any](c types.CacheManager, key string) (T, bool) {
	var zero T

	raw, ok := c.Get(key)
	if !ok {
		return zero, false
	}

	if value, ok := raw.(T); ok {
		return value, true
	}

	var decoded T
	if err := utils.UnmarshalConfig(raw, &decoded); err != nil {
		return zero, false
	}
	return decoded, true
}
