package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
)

type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 30 * time.Second
	defaultHalfOpenRequests = 1
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops deliveries to an endpoint after FailureThreshold
// consecutive failures and lets a probe through once RecoveryTimeout has
// passed. A disabled breaker always allows.
type CircuitBreaker struct {
	name      string
	enabled   bool
	threshold int
	recovery  time.Duration
	halfOpen  int
	logger    types.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

func NewCircuitBreaker(name string, config *types.BreakerConfig, logger types.Logger, now func() time.Time) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		threshold: defaultFailureThreshold,
		recovery:  defaultRecoveryTimeout,
		halfOpen:  defaultHalfOpenRequests,
		logger:    logger,
		now:       now,
	}

	if config == nil || !config.Enabled {
		return cb
	}

	cb.enabled = true
	if config.FailureThreshold > 0 {
		cb.threshold = config.FailureThreshold
	}
	if config.RecoveryTimeout > 0 {
		cb.recovery = config.RecoveryTimeout
	}
	if config.HalfOpenRequests > 0 {
		cb.halfOpen = config.HalfOpenRequests
	}

	return cb
}

func (cb *CircuitBreaker) CanExecute() bool {
	if !cb.enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen {
		if cb.now().Sub(cb.openedAt) < cb.recovery {
			return false
		}
		cb.state = BreakerHalfOpen
		cb.successes = 0
		cb.logger.Info("Circuit breaker transitioned to half-open", zap.String("endpoint", cb.name))
	}

	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpen {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.successes = 0
			cb.logger.Info("Circuit breaker closed", zap.String("endpoint", cb.name))
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.open()
		}
	case BreakerHalfOpen:
		cb.open()
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) open() {
	cb.state = BreakerOpen
	cb.openedAt = cb.now()
	cb.successes = 0
	cb.logger.Warn("Circuit breaker opened",
		zap.String("endpoint", cb.name),
		zap.Int("failures", cb.failures),
		zap.Int("threshold", cb.threshold))
}

// transient reports whether a delivery outcome counts against the endpoint
// and is worth retrying. Other client errors mean the receiver rejected the
// payload.
func transient(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	return statusCode == 408 || statusCode == 429 || statusCode >= 500
}
