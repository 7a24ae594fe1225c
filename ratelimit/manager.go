package ratelimit

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/catalog-service/types"
)

// Manager owns the named limiters of the service. Presets are created first
// and the configured limiters override them by name.
type Manager struct {
	logger   types.Logger
	metrics  types.MetricsManager
	limiters map[string]*Limiter
	resolver *Resolver
	disabled bool
	mu       sync.RWMutex
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager, opts ...Option) (*Manager, error) {
	rlConfig := config.GetConfig().RateLimit

	configs := make(map[string]Config, len(Presets))
	for name, preset := range Presets {
		configs[name] = preset
	}

	if rlConfig != nil {
		for name, lc := range rlConfig.Limiters {
			configs[name] = Config{Window: lc.Window, MaxRequests: lc.MaxRequests}
		}
		if rlConfig.SweepInterval > 0 {
			opts = append([]Option{WithSweepInterval(rlConfig.SweepInterval)}, opts...)
		}
	}

	var trustedProxies []string
	if rlConfig != nil {
		trustedProxies = rlConfig.TrustedProxies
	}

	resolver, err := NewResolver(trustedProxies)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		logger:   logger,
		metrics:  metrics,
		limiters: make(map[string]*Limiter, len(configs)),
		resolver: resolver,
		disabled: rlConfig != nil && !rlConfig.Enabled,
	}

	for name, cfg := range configs {
		limiter, err := New(ctx, logger, cfg, append([]Option{WithName(name)}, opts...)...)
		if err != nil {
			return nil, types.WrapError(err, "limiter "+name)
		}
		m.limiters[name] = limiter
	}

	return m, nil
}

func (m *Manager) Get(name string) (*Limiter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limiter, ok := m.limiters[name]
	if !ok {
		return nil, types.Errorf(types.ErrLimiterNotFound, "name: %s", name)
	}
	return limiter, nil
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.limiters))
	for name := range m.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Identity keys req the way this manager's guards do.
func (m *Manager) Identity(req types.RequestIdentity) string {
	return m.resolver.Identity(req)
}

// Guard returns a guard for the named limiter that also records the outcome.
func (m *Manager) Guard(name string) (Guard, error) {
	limiter, err := m.Get(name)
	if err != nil {
		return nil, err
	}

	if m.disabled {
		cfg := limiter.Config()
		return func(types.RequestIdentity) (types.RateLimitResult, error) {
			return types.RateLimitResult{Allowed: true, Limit: cfg.MaxRequests, Remaining: cfg.MaxRequests}, nil
		}, nil
	}

	guard := NewGuard(limiter, m.resolver, limiter.now)

	return func(req types.RequestIdentity) (types.RateLimitResult, error) {
		result, err := guard(req)

		outcome := "allowed"
		if err != nil {
			outcome = "denied"
		}

		if m.metrics != nil {
			m.metrics.Counter("ratelimit_checks_total", map[string]string{
				"limiter": name,
				"result":  outcome,
			}).Inc()
		}

		return result, err
	}, nil
}

// SweepAll runs one sweep on every limiter and returns the total removed.
func (m *Manager) SweepAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for name, limiter := range m.limiters {
		removed := limiter.Sweep()
		total += removed

		if m.metrics != nil {
			m.metrics.Gauge("ratelimit_records", map[string]string{"limiter": name}).Set(float64(limiter.Len()))
		}
	}
	return total
}

func (m *Manager) Start() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, limiter := range m.limiters {
		if err := limiter.Start(); err != nil {
			return types.WrapError(err, "failed to start limiter "+name)
		}
	}

	m.logger.Info("Rate limiters started", zap.Int("count", len(m.limiters)))
	return nil
}

func (m *Manager) Stop() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := errgroup.Group{}
	for _, limiter := range m.limiters {
		limiter := limiter
		g.Go(limiter.Stop)
	}

	return g.Wait()
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, limiter := range m.limiters {
		if !limiter.IsRunning() {
			return false
		}
	}
	return len(m.limiters) > 0
}
