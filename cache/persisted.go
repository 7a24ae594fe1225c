package cache

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const DefaultPersistedPrefix = "catalog:"

type persistedEntry struct {
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
	TTL       int64       `json:"ttl"`
}

// PersistedCache stores TTL entries as JSON strings in a KeyValueStore.
// With a nil store every call is a silent no-op. Store and codec failures
// are logged and treated as misses; nothing here returns an error.
type PersistedCache struct {
	store  types.KeyValueStore
	logger types.Logger
	prefix string
	now    func() time.Time
}

type PersistedOption func(*PersistedCache)

func WithPersistedClock(now func() time.Time) PersistedOption {
	return func(p *PersistedCache) {
		p.now = now
	}
}

func WithPrefix(prefix string) PersistedOption {
	return func(p *PersistedCache) {
		p.prefix = prefix
	}
}

func NewPersistedCache(store types.KeyValueStore, logger types.Logger, opts ...PersistedOption) *PersistedCache {
	p := &PersistedCache{
		store:  store,
		logger: logger,
		prefix: DefaultPersistedPrefix,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *PersistedCache) Available() bool {
	return p != nil && p.store != nil
}

// Set stores data for ttl; types.DefaultTTL selects DefaultTTL.
func (p *PersistedCache) Set(key string, data interface{}, ttl time.Duration) {
	if !p.Available() {
		return
	}

	if ttl < 0 {
		ttl = DefaultTTL
	}

	encoded, err := utils.Marshal(&persistedEntry{
		Data:      data,
		Timestamp: p.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
	if err != nil {
		p.logger.Warn("Failed to encode persisted cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	if err := p.store.Set(p.prefix+key, string(encoded)); err != nil {
		p.logger.Warn("Failed to save persisted cache entry", zap.String("key", key), zap.Error(err))
	}
}

func (p *PersistedCache) Get(key string) (interface{}, bool) {
	e, ok := p.load(key)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

func (p *PersistedCache) Delete(key string) {
	if !p.Available() {
		return
	}

	if err := p.store.Remove(p.prefix + key); err != nil {
		p.logger.Warn("Failed to remove persisted cache entry", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes only keys under this cache's prefix.
func (p *PersistedCache) Clear() {
	if !p.Available() {
		return
	}

	keys, err := p.store.Keys()
	if err != nil {
		p.logger.Warn("Failed to list persisted cache keys", zap.Error(err))
		return
	}

	for _, key := range keys {
		if !strings.HasPrefix(key, p.prefix) {
			continue
		}
		if err := p.store.Remove(key); err != nil {
			p.logger.Warn("Failed to remove persisted cache entry", zap.String("key", key), zap.Error(err))
		}
	}
}

func (p *PersistedCache) load(key string) (*persistedEntry, bool) {
	if !p.Available() {
		return nil, false
	}

	raw, found, err := p.store.Get(p.prefix + key)
	if err != nil {
		p.logger.Warn("Failed to read persisted cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var e persistedEntry
	if err := utils.Unmarshal([]byte(raw), &e); err != nil {
		p.logger.Warn("Failed to decode persisted cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if p.now().UnixMilli()-e.Timestamp >= e.TTL {
		p.Delete(key)
		return nil, false
	}

	return &e, true
}

// PersistedLookup reads key from p decoded into a T.
func PersistedLookup[T any](p *PersistedCache, key string) (T, bool) {
	var zero T

	raw, ok := p.Get(key)
	if !ok {
		return zero, false
	}

	var decoded T
	if err := utils.UnmarshalConfig(raw, &decoded); err != nil {
		p.logger.Warn("Failed to convert persisted cache entry", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return decoded, true
}
