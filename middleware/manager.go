package middleware

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/ratelimit"
	"github.com/saiset-co/catalog-service/types"
)

const (
	MaxMiddlewares = 64

	defaultAuthWeight = 60
)

// Middlewares listed here run only on routes that ask for them by name.
var optIn = map[string]bool{
	"auth": true,
}

type chainFunc func(*fasthttp.RequestCtx, types.FastHTTPHandler, *types.RouteConfig)

type Manager struct {
	ctx         context.Context
	config      types.ConfigManager
	logger      types.Logger
	metrics     types.MetricsManager
	limiters    *ratelimit.Manager
	pending     map[string]types.Middleware
	ordered     []types.Middleware
	nameToIndex map[string]int
	defaultMask uint64
	mu          sync.RWMutex
	masks       sync.Map
	chains      map[uint64]chainFunc
	chainsMu    sync.RWMutex
	initialized int32
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager, limiters *ratelimit.Manager) (*Manager, error) {
	return &Manager{
		ctx:         ctx,
		config:      config,
		logger:      logger,
		metrics:     metrics,
		limiters:    limiters,
		pending:     make(map[string]types.Middleware),
		nameToIndex: make(map[string]int),
		chains:      make(map[uint64]chainFunc),
	}, nil
}

// RegisterMiddlewares builds every enabled middleware from config and seals
// the chain. The auth middleware is always registered so admin routes can
// never run unprotected.
func (m *Manager) RegisterMiddlewares() error {
	mwConfig := m.config.GetConfig().Middlewares
	if mwConfig == nil {
		mwConfig = &types.MiddlewaresConfig{}
	}

	type entry struct {
		item  *types.MiddlewareItemConfig
		build func() (types.Middleware, error)
	}

	entries := []entry{
		{mwConfig.Recovery, func() (types.Middleware, error) {
			return NewRecoveryMiddleware(m.config, m.logger, m.metrics), nil
		}},
		{mwConfig.RequestID, func() (types.Middleware, error) {
			return NewRequestIDMiddleware(m.config, m.logger), nil
		}},
		{mwConfig.Logging, func() (types.Middleware, error) {
			return NewLoggingMiddleware(m.config, m.logger, m.metrics), nil
		}},
		{mwConfig.Security, func() (types.Middleware, error) {
			return NewSecurityMiddleware(m.config, m.logger), nil
		}},
		{mwConfig.CORS, func() (types.Middleware, error) {
			return NewCORSMiddleware(m.config, m.logger), nil
		}},
		{mwConfig.BodyLimit, func() (types.Middleware, error) {
			return NewBodyLimitMiddleware(m.config, m.logger), nil
		}},
		{mwConfig.RateLimit, func() (types.Middleware, error) {
			return NewRateLimitMiddleware(m.config, m.logger, m.limiters)
		}},
		{mwConfig.Compression, func() (types.Middleware, error) {
			return NewCompressionMiddleware(m.config, m.logger, m.metrics), nil
		}},
		{mwConfig.Cache, func() (types.Middleware, error) {
			return NewCacheMiddleware(m.config, m.logger), nil
		}},
	}

	if mwConfig.Enabled {
		for _, e := range entries {
			if e.item == nil || !e.item.Enabled {
				continue
			}

			mw, err := e.build()
			if err != nil {
				return err
			}
			if err := m.Register(mw); err != nil {
				return err
			}
			m.logger.Info("Middleware registered", zap.String("name", mw.Name()), zap.Int("weight", mw.Weight()))
		}
	}

	if err := m.Register(NewAuthMiddleware(m.config, m.logger, m.metrics)); err != nil {
		return err
	}

	return m.Finalize()
}

func (m *Manager) Register(middleware types.Middleware) error {
	if middleware == nil {
		return types.ErrMiddlewareInvalidType
	}

	if atomic.LoadInt32(&m.initialized) == 1 {
		return types.NewErrorf("cannot register middleware after finalization")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) >= MaxMiddlewares {
		return types.NewErrorf("maximum middleware count exceeded: %d", MaxMiddlewares)
	}

	m.pending[middleware.Name()] = middleware
	return nil
}

// Finalize orders the registered middlewares by weight. Two middlewares with
// the same weight are a configuration error.
func (m *Manager) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if atomic.LoadInt32(&m.initialized) == 1 {
		return types.NewErrorf("configuration already finalized")
	}

	weights := make(map[int]string, len(m.pending))
	for name, mw := range m.pending {
		if existing, exists := weights[mw.Weight()]; exists {
			return types.Errorf(types.ErrMiddlewareOrderInvalid, "duplicate weight %d for middlewares '%s' and '%s'",
				mw.Weight(), existing, name)
		}
		weights[mw.Weight()] = name
	}

	m.ordered = make([]types.Middleware, 0, len(m.pending))
	for _, mw := range m.pending {
		m.ordered = append(m.ordered, mw)
	}

	sort.Slice(m.ordered, func(i, j int) bool {
		return m.ordered[i].Weight() < m.ordered[j].Weight()
	})

	m.nameToIndex = make(map[string]int, len(m.ordered))
	m.defaultMask = 0
	for i, mw := range m.ordered {
		m.nameToIndex[mw.Name()] = i
		if !optIn[mw.Name()] {
			m.defaultMask |= 1 << uint(i)
		}
	}

	m.pending = nil
	atomic.StoreInt32(&m.initialized, 1)

	return nil
}

func (m *Manager) Execute(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler, config *types.RouteConfig) {
	if atomic.LoadInt32(&m.initialized) == 0 {
		handler(ctx)
		return
	}

	mask := m.routeMask(config)
	if mask == 0 {
		handler(ctx)
		return
	}

	m.chain(mask)(ctx, handler, config)
}

// Names returns the registered middlewares in execution order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.ordered))
	for _, mw := range m.ordered {
		names = append(names, mw.Name())
	}
	return names
}

// Route configs are built once per route, so the computed mask is cached by pointer.
func (m *Manager) routeMask(config *types.RouteConfig) uint64 {
	if config == nil || (len(config.Middlewares) == 0 && len(config.DisabledMiddlewares) == 0) {
		return m.defaultMask
	}

	if cached, ok := m.masks.Load(config); ok {
		return cached.(uint64)
	}

	mask := m.defaultMask
	for _, name := range config.Middlewares {
		if index, exists := m.nameToIndex[name]; exists {
			mask |= 1 << uint(index)
		}
	}
	for _, name := range config.DisabledMiddlewares {
		if index, exists := m.nameToIndex[name]; exists && !optIn[name] {
			mask &^= 1 << uint(index)
		}
	}

	m.masks.Store(config, mask)
	return mask
}

func (m *Manager) chain(mask uint64) chainFunc {
	m.chainsMu.RLock()
	compiled, ok := m.chains[mask]
	m.chainsMu.RUnlock()
	if ok {
		return compiled
	}

	active := make([]types.Middleware, 0, len(m.ordered))
	for i, mw := range m.ordered {
		if mask&(1<<uint(i)) != 0 {
			active = append(active, mw)
		}
	}

	compiled = compileChain(active)

	m.chainsMu.Lock()
	m.chains[mask] = compiled
	m.chainsMu.Unlock()

	return compiled
}

func compileChain(middlewares []types.Middleware) chainFunc {
	return func(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler, config *types.RouteConfig) {
		var index int

		var next func(*fasthttp.RequestCtx)
		next = func(ctx *fasthttp.RequestCtx) {
			if index >= len(middlewares) {
				handler(ctx)
				return
			}

			mw := middlewares[index]
			index++
			mw.Handle(ctx, next, config)
		}

		next(ctx)
	}
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ordered = nil
	m.pending = make(map[string]types.Middleware)
	m.nameToIndex = make(map[string]int)
	m.defaultMask = 0
	m.masks = sync.Map{}

	m.chainsMu.Lock()
	m.chains = make(map[uint64]chainFunc)
	m.chainsMu.Unlock()

	atomic.StoreInt32(&m.initialized, 0)

	m.logger.Info("Middleware manager stopped")
}

func itemParams(item *types.MiddlewareItemConfig) map[string]interface{} {
	if item == nil {
		return nil
	}
	return item.Params
}

func itemWeight(item *types.MiddlewareItemConfig, def int) int {
	if item == nil || item.Weight == 0 {
		return def
	}
	return item.Weight
}

func middlewaresConfig(config types.ConfigManager) *types.MiddlewaresConfig {
	if mw := config.GetConfig().Middlewares; mw != nil {
		return mw
	}
	return &types.MiddlewaresConfig{}
}
