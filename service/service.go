package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/catalog-service/config"
	"github.com/saiset-co/catalog-service/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
	startTimeout    time.Duration
	components      *components
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "file does not exist")
	}

	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return New(ctx, configManager)
}

// New wires the service around an already loaded configuration.
func New(ctx context.Context, configManager *config.ConfigurationManager) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	components, err := buildComponents(serviceCtx, configManager)
	if err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to register providers")
	}

	service := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startTimeout:    60 * time.Second,
		components:      components,
	}

	service.state.Store(StateStopped)

	return service, nil
}

// Start runs the service until Stop is called, a shutdown signal arrives or
// the parent context is cancelled.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		s.logger().Warn("Service is already running")
		return types.ErrServiceIsRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.logger().ErrorWithStack("Service run panic", string(buf[:n]))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	s.logger().Info("Starting service", zap.String("name", s.components.config.GetConfig().Name))

	ctx, cancel := context.WithTimeout(s.ctx, s.startTimeout)
	defer cancel()

	if err := s.startComponents(ctx); err != nil {
		s.logger().Error("Failed to start components", zap.Error(err))
		_ = s.stopComponents()
		s.setState(StateStopped)
		s.cancel()
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	s.logger().Info("Service started successfully", zap.String("address", s.Address()))

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.logger().Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	s.logger().Info("Service stopped gracefully")
	_ = s.components.logger.Stop()
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		s.logger().Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.logger().Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

// Address is the HTTP listen address, resolved once the server is up.
func (s *Service) Address() string {
	return s.components.http.Address()
}

func (s *Service) logger() types.Logger {
	return s.components.logger
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Service) startComponents(ctx context.Context) error {
	c := s.components
	_config := c.config.GetConfig()

	for _, step := range []namedManager{
		{"config manager", c.config},
		{"logger", c.logger},
		{"database", c.database},
	} {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := step.manager.Start(); err != nil {
				return types.WrapError(err, "failed to start "+step.name)
			}
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	for _, step := range c.backgroundManagers() {
		step := step
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := step.manager.Start(); err != nil {
					return types.WrapError(err, "failed to start "+step.name)
				}
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			return types.NewErrorf("component startup timeout: %v", ctx.Err())
		default:
			return err
		}
	}

	if _config.Database.Seed {
		if _, err := c.products.Seed(ctx); err != nil {
			c.logger.Error("Failed to seed catalog", zap.Error(err))
		}
	}

	if c.health != nil {
		if err := c.health.Start(); err != nil {
			c.logger.Error("Failed to start health manager", zap.Error(err))
		}
	}

	if err := c.http.Start(); err != nil {
		return types.WrapError(err, "failed to start HTTP server")
	}

	if c.cron != nil {
		if err := c.cron.Start(); err != nil {
			c.logger.Error("Failed to start cron manager", zap.Error(err))
		}
	}

	c.logger.Info("All components started successfully")
	return nil
}

// stopComponents stops in reverse start order, skipping components that are
// not running.
func (s *Service) stopComponents() error {
	c := s.components

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error

	c.logger.Info("Stopping service components...")

	stop := func(name string, manager types.LifecycleManager) {
		if !manager.IsRunning() {
			return
		}
		if err := manager.Stop(); err != nil {
			c.logger.Error("Failed to stop "+name, zap.Error(err))
			errs = append(errs, err)
		}
	}

	if c.cron != nil {
		stop("cron manager", c.cron)
	}
	stop("HTTP server", c.http)
	if c.health != nil {
		stop("health manager", c.health)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, step := range c.backgroundManagers() {
		step := step
		if !step.manager.IsRunning() {
			continue
		}
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := step.manager.Stop(); err != nil {
					c.logger.Error("Failed to stop "+step.name, zap.Error(err))
					return err
				}
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			c.logger.Warn("Component shutdown timeout, some components may not have stopped gracefully")
		default:
			errs = append(errs, err)
		}
	}

	stop("database", c.database)
	stop("config manager", c.config)

	if len(errs) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errs)
	}

	c.logger.Info("All components stopped successfully")
	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case sig := <-sigChan:
			s.logger().Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}

		case err := <-s.components.http.Errors():
			s.logger().Error("HTTP server stopped unexpectedly", zap.Error(err))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}

		case <-s.ctx.Done():
			s.logger().Info("Service context cancelled")
		}

		signal.Stop(sigChan)
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		s.logger().Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		s.logger().Warn("Service shutdown: context deadline exceeded")
	default:
		s.logger().Info("Service shutdown: context done")
	}
}
