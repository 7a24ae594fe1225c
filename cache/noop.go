package cache

import (
	"time"

	"github.com/saiset-co/catalog-service/types"
)

// NoopCache stores nothing. It stands in when caching is disabled so callers
// never need a nil check.
type NoopCache struct{}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (NoopCache) Type() string                           { return "noop" }
func (NoopCache) Get(string) (interface{}, bool)         { return nil, false }
func (NoopCache) Set(string, interface{}, time.Duration) {}
func (NoopCache) Delete(string) bool                     { return false }
func (NoopCache) Clear()                                 {}
func (NoopCache) Cleanup() int                           { return 0 }
func (NoopCache) InvalidatePrefix(string) int            { return 0 }
func (NoopCache) Len() int                               { return 0 }
func (NoopCache) Stats() types.CacheStats                { return types.CacheStats{} }
func (NoopCache) Start() error                           { return nil }
func (NoopCache) Stop() error                            { return nil }
func (NoopCache) IsRunning() bool                        { return true }
