package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

type MemoryConfig struct {
	MaxEntries int `json:"max_entries"`
}

type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.storedAt.Add(e.ttl))
}

// MemoryCache is a TTL map. Expired entries are dropped when read and by a
// periodic sweep while the cache is running.
type MemoryCache struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	config          *MemoryConfig
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	data            map[string]*entry
	mu              sync.RWMutex
	state           atomic.Value
	cleanupDone     chan struct{}
	hits            uint64
	misses          uint64
	sets            uint64
	deletes         uint64
	evictions       uint64
}

type Option func(*MemoryCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryCache) {
		m.now = now
	}
}

func NewMemoryCache(ctx context.Context, logger types.Logger, config *types.CacheConfig, opts ...Option) (*MemoryCache, error) {
	memConfig := &MemoryConfig{
		MaxEntries: 10000,
	}

	if config != nil && config.Config != nil {
		if err := utils.UnmarshalConfig(config.Config, memConfig); err != nil {
			return nil, types.WrapError(err, "failed to unmarshal memory cache config")
		}
	}

	m := &MemoryCache{
		ctx:             ctx,
		logger:          logger,
		config:          memConfig,
		defaultTTL:      DefaultTTL,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
		data:            make(map[string]*entry),
	}

	if config != nil {
		if config.DefaultTTL > 0 {
			m.defaultTTL = config.DefaultTTL
		}
		if config.CleanupInterval > 0 {
			m.cleanupInterval = config.CleanupInterval
		}
	}

	for _, opt := range opts {
		opt(m)
	}

	m.state.Store(StateStopped)

	return m, nil
}

func (m *MemoryCache) Type() string {
	return "memory"
}

func (m *MemoryCache) Get(key string) (interface{}, bool) {
	now := m.now()

	m.mu.RLock()
	e, exists := m.data[key]
	if !exists {
		m.mu.RUnlock()
		atomic.AddUint64(&m.misses, 1)
		return nil, false
	}

	if e.expired(now) {
		m.mu.RUnlock()

		m.mu.Lock()
		if current, ok := m.data[key]; ok && current.expired(now) {
			delete(m.data, key)
			atomic.AddUint64(&m.evictions, 1)
		}
		m.mu.Unlock()

		atomic.AddUint64(&m.misses, 1)
		return nil, false
	}

	value := e.value
	m.mu.RUnlock()

	atomic.AddUint64(&m.hits, 1)
	return value, true
}

// Set stores value for ttl. types.DefaultTTL selects the configured default;
// a zero ttl stores an entry that is already expired.
func (m *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl < 0 {
		ttl = m.defaultTTL
	}

	e := &entry{
		value:    value,
		storedAt: m.now(),
		ttl:      ttl,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxEntries > 0 {
		if _, exists := m.data[key]; !exists && len(m.data) >= m.config.MaxEntries {
			m.evictOneUnsafe()
		}
	}

	m.data[key] = e
	atomic.AddUint64(&m.sets, 1)
}

func (m *MemoryCache) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists {
		return false
	}

	delete(m.data, key)
	atomic.AddUint64(&m.deletes, 1)
	return true
}

func (m *MemoryCache) Clear() {
	m.mu.Lock()
	cleared := len(m.data)
	m.data = make(map[string]*entry)
	m.mu.Unlock()

	m.logger.Debug("Memory cache cleared", zap.Int("cleared_entries", cleared))
}

// Cleanup removes every expired entry and returns how many were removed.
func (m *MemoryCache) Cleanup() int {
	now := m.now()

	m.mu.Lock()
	removed := 0
	for key, e := range m.data {
		if e.expired(now) {
			delete(m.data, key)
			removed++
		}
	}
	m.mu.Unlock()

	atomic.AddUint64(&m.evictions, uint64(removed))
	return removed
}

func (m *MemoryCache) InvalidatePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
			removed++
		}
	}

	atomic.AddUint64(&m.deletes, uint64(removed))
	return removed
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryCache) Stats() types.CacheStats {
	return types.CacheStats{
		Entries:   m.Len(),
		Hits:      atomic.LoadUint64(&m.hits),
		Misses:    atomic.LoadUint64(&m.misses),
		Sets:      atomic.LoadUint64(&m.sets),
		Deletes:   atomic.LoadUint64(&m.deletes),
		Evictions: atomic.LoadUint64(&m.evictions),
	}
}

func (m *MemoryCache) Start() error {
	if !m.transitionState(StateStopped, StateStarting) {
		m.logger.Warn("Memory cache is already running")
		return types.ErrCacheIsRunning
	}

	defer func() {
		if m.getState() == StateStarting {
			m.setState(StateRunning)
		}
	}()

	// Each run gets its own context and done channel so a stopped cache can
	// be started again.
	runCtx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.cleanupDone = make(chan struct{})

	go m.startCleanupRoutine(runCtx, m.cleanupDone)

	m.logger.Info("Memory cache started",
		zap.Duration("default_ttl", m.defaultTTL),
		zap.Duration("cleanup_interval", m.cleanupInterval),
		zap.Int("max_entries", m.config.MaxEntries))
	return nil
}

func (m *MemoryCache) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		m.logger.Warn("Memory cache is not running")
		return types.ErrCacheIsNotRunning
	}

	defer m.setState(StateStopped)

	m.cancel()

	select {
	case <-m.cleanupDone:
		m.logger.Debug("Cleanup routine stopped")
	case <-time.After(5 * time.Second):
		m.logger.Warn("Cleanup routine stop timeout")
	}

	m.Clear()

	m.logger.Info("Memory cache stopped gracefully")
	return nil
}

func (m *MemoryCache) IsRunning() bool {
	return m.getState() == StateRunning
}

func (m *MemoryCache) getState() State {
	return m.state.Load().(State)
}

func (m *MemoryCache) setState(newState State) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *MemoryCache) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(from, to)
}

func (m *MemoryCache) startCleanupRoutine(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Cleanup(); removed > 0 {
				m.logger.Debug("Cache cleanup completed", zap.Int("expired_entries", removed))
			}
		}
	}
}

// evictOneUnsafe drops the oldest entry. Callers hold the write lock.
func (m *MemoryCache) evictOneUnsafe() {
	var oldestKey string
	var oldestTime time.Time

	for key, e := range m.data {
		if oldestKey == "" || e.storedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.storedAt
		}
	}

	if oldestKey != "" {
		delete(m.data, oldestKey)
		atomic.AddUint64(&m.evictions, 1)
	}
}
