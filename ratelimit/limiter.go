package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const DefaultSweepInterval = 5 * time.Minute

type Config struct {
	Window      time.Duration
	MaxRequests int
}

func (c Config) Validate() error {
	if c.Window <= 0 || c.MaxRequests < 1 {
		return types.Errorf(types.ErrLimiterConfigInvalid, "window %s, max requests %d", c.Window, c.MaxRequests)
	}
	return nil
}

type record struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed window counter per identity. A window starts on the
// first check after the previous one has fully elapsed.
type Limiter struct {
	name          string
	config        Config
	logger        types.Logger
	now           func() time.Time
	sweepInterval time.Duration
	records       map[string]*record
	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	sweepDone     chan struct{}
	state         atomic.Value
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func WithSweepInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		if interval > 0 {
			l.sweepInterval = interval
		}
	}
}

func WithName(name string) Option {
	return func(l *Limiter) {
		l.name = name
	}
}

func New(ctx context.Context, logger types.Logger, config Config, opts ...Option) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		name:          "default",
		config:        config,
		logger:        logger,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		records:       make(map[string]*record),
		ctx:           ctx,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.state.Store(StateStopped)

	return l, nil
}

func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) Config() Config {
	return l.config
}

// Check consumes one slot for identity if the window still has room.
// Denied checks do not touch the counter.
func (l *Limiter) Check(identity string) types.RateLimitResult {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, exists := l.records[identity]
	if !exists || !now.Before(rec.resetAt) {
		rec = &record{resetAt: now.Add(l.config.Window)}
		l.records[identity] = rec
	}

	allowed := rec.count < l.config.MaxRequests
	if allowed {
		rec.count++
	}

	remaining := l.config.MaxRequests - rec.count
	if remaining < 0 {
		remaining = 0
	}

	return types.RateLimitResult{
		Allowed:   allowed,
		Limit:     l.config.MaxRequests,
		Remaining: remaining,
		ResetTime: rec.resetAt,
	}
}

// Sweep drops every record whose window has elapsed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for identity, rec := range l.records {
		if !now.Before(rec.resetAt) {
			delete(l.records, identity)
			removed++
		}
	}

	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *Limiter) Start() error {
	if !l.transitionState(StateStopped, StateStarting) {
		return types.ErrLimiterIsRunning
	}

	defer func() {
		if l.getState() == StateStarting {
			l.setState(StateRunning)
		}
	}()

	runCtx, cancel := context.WithCancel(l.ctx)
	l.cancel = cancel
	l.sweepDone = make(chan struct{})

	go l.sweepRoutine(runCtx, l.sweepDone)

	l.logger.Info("Rate limiter started",
		zap.String("name", l.name),
		zap.Duration("window", l.config.Window),
		zap.Int("max_requests", l.config.MaxRequests))
	return nil
}

func (l *Limiter) Stop() error {
	if !l.transitionState(StateRunning, StateStopping) {
		return types.ErrLimiterIsNotRunning
	}

	defer l.setState(StateStopped)

	l.cancel()

	select {
	case <-l.sweepDone:
	case <-time.After(5 * time.Second):
		l.logger.Warn("Rate limiter sweep stop timeout", zap.String("name", l.name))
	}

	l.logger.Info("Rate limiter stopped gracefully", zap.String("name", l.name))
	return nil
}

func (l *Limiter) IsRunning() bool {
	return l.getState() == StateRunning
}

func (l *Limiter) getState() State {
	return l.state.Load().(State)
}

func (l *Limiter) setState(newState State) bool {
	currentState := l.getState()
	return l.state.CompareAndSwap(currentState, newState)
}

func (l *Limiter) transitionState(from, to State) bool {
	return l.state.CompareAndSwap(from, to)
}

func (l *Limiter) sweepRoutine(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("Rate limit sweep completed",
					zap.String("name", l.name),
					zap.Int("expired_records", removed))
			}
		}
	}
}
