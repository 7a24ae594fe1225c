package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saiset-co/catalog-service/logger"
)

// unreachableRedis returns a client for a port nothing listens on.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
		MaxRetries:   -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCache_UnreachableDegradesToMiss(t *testing.T) {
	r := newRedisCache(context.Background(), logger.NewNop(), DefaultRedisConfig(), unreachableRedis(t), time.Minute)

	r.Set("products:list", []string{"a"}, time.Minute)
	r.Set("products:list", "gone", 0)

	if _, ok := r.Get("products:list"); ok {
		t.Fatalf("unreachable backend must read as a miss")
	}
	if r.Delete("products:list") {
		t.Fatalf("delete on unreachable backend reported removal")
	}
	if n := r.InvalidatePrefix("products:"); n != 0 {
		t.Fatalf("InvalidatePrefix = %d, want 0", n)
	}
	if n := r.Len(); n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
	r.Clear()

	stats := r.Stats()
	if stats.Misses != 1 || stats.Sets != 0 || stats.Hits != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRedisCache_UnreachableWithCacheCallsProducer(t *testing.T) {
	r := newRedisCache(context.Background(), logger.NewNop(), DefaultRedisConfig(), unreachableRedis(t), time.Minute)

	calls := 0
	wrapped := WithCache(r, func(ctx context.Context, id string) (string, error) {
		calls++
		return "product-" + id, nil
	}, func(id string) string { return "product:" + id }, time.Minute)

	for i := 0; i < 2; i++ {
		value, err := wrapped(context.Background(), "42")
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if value != "product-42" {
			t.Fatalf("call %d = %q", i+1, value)
		}
	}

	if calls != 2 {
		t.Fatalf("producer called %d times, want 2 with no working cache", calls)
	}
}
