package types

import (
	"time"
)

// DefaultTTL asks a cache to apply its configured default lifetime.
const DefaultTTL time.Duration = -1

type CacheManager interface {
	LifecycleManager
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string) bool
	Clear()
	Cleanup() int
	InvalidatePrefix(prefix string) int
	Len() int
	Stats() CacheStats
	Type() string
}

// KeyValueStore is a synchronous string store, such as the backing of a persisted cache.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
}

type KeyValueStoreManager interface {
	KeyValueStore
	LifecycleManager
	Type() string
}

type CacheStats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Sets      uint64 `json:"sets"`
	Deletes   uint64 `json:"deletes"`
	Evictions uint64 `json:"evictions"`
}
