package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
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

const (
	defaultShutdownTimeout = 10 * time.Second
	maxRequestBodySize     = 4 * 1024 * 1024
)

var _ types.HTTPServer = (*FastHTTPServer)(nil)

type FastHTTPServer struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	router          *Router
	server          *fasthttp.Server
	listener        net.Listener
	httpConfig      *types.HTTPConfig
	tlsConfig       *tls.Config
	state           atomic.Value
	shutdownTimeout time.Duration
	serveErr        chan error
}

func NewHTTPServer(ctx context.Context, config types.ConfigManager, logger types.Logger, router *Router) (*FastHTTPServer, error) {
	serverConfig := config.GetConfig().Server
	if serverConfig == nil || serverConfig.HTTP == nil {
		return nil, types.Errorf(types.ErrConfigIsNil, "server.http")
	}

	tlsConfig, err := newTLSConfig(serverConfig.TLS, time.Now)
	if err != nil {
		return nil, err
	}

	serverCtx, cancel := context.WithCancel(ctx)

	shutdownTimeout := defaultShutdownTimeout
	if serverConfig.HTTP.ShutdownTimeout > 0 {
		shutdownTimeout = time.Duration(serverConfig.HTTP.ShutdownTimeout) * time.Second
	}

	server := &FastHTTPServer{
		ctx:             serverCtx,
		cancel:          cancel,
		logger:          logger,
		router:          router,
		httpConfig:      serverConfig.HTTP,
		tlsConfig:       tlsConfig,
		shutdownTimeout: shutdownTimeout,
		serveErr:        make(chan error, 1),
	}

	server.state.Store(StateStopped)

	return server, nil
}

// Start binds the listener synchronously so address errors surface here, then
// serves in the background.
func (h *FastHTTPServer) Start() error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	defer func() {
		if h.getState() == StateStarting {
			h.setState(StateRunning)
		}
	}()

	h.server = &fasthttp.Server{
		Handler:                      h.router.Handler,
		Name:                         "catalog-service",
		ReadTimeout:                  time.Duration(h.httpConfig.ReadTimeout) * time.Second,
		WriteTimeout:                 time.Duration(h.httpConfig.WriteTimeout) * time.Second,
		IdleTimeout:                  time.Duration(h.httpConfig.IdleTimeout) * time.Second,
		MaxRequestBodySize:           maxRequestBodySize,
		TCPKeepalive:                 true,
		DisablePreParseMultipartForm: true,
		CloseOnShutdown:              true,
		Logger:                       fasthttpLogger{h.logger},
	}

	listener, err := net.Listen("tcp", h.Address())
	if err != nil {
		h.setState(StateStopped)
		return types.Errorf(types.ErrServerStartFailed, "listen %s: %v", h.Address(), err)
	}
	if h.tlsConfig != nil {
		listener = tls.NewListener(listener, h.tlsConfig)
	}
	h.listener = listener

	go func() {
		if err := h.server.Serve(listener); err != nil {
			h.logger.Error("HTTP server failed", zap.Error(err))
			h.serveErr <- err
			h.setState(StateStopped)
		}
	}()

	h.logger.Info("HTTP server started successfully",
		zap.String("address", listener.Addr().String()),
		zap.Bool("tls", h.tlsConfig != nil))

	return nil
}

func (h *FastHTTPServer) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		h.setState(StateStopped)
		h.cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.ShutdownWithContext(ctx); err != nil {
		h.logger.Warn("HTTP server stop timeout, open connections were dropped", zap.Error(err))
		return types.Errorf(types.ErrServerStopFailed, "%v", err)
	}

	h.logger.Info("HTTP server stopped gracefully")
	return nil
}

func (h *FastHTTPServer) IsRunning() bool {
	return h.getState() == StateRunning
}

// Address is the configured address, or the bound one once listening.
func (h *FastHTTPServer) Address() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return net.JoinHostPort(h.httpConfig.Host, strconv.Itoa(h.httpConfig.Port))
}

// Errors delivers a serve failure after Start returned.
func (h *FastHTTPServer) Errors() <-chan error {
	return h.serveErr
}

func (h *FastHTTPServer) getState() State {
	return h.state.Load().(State)
}

func (h *FastHTTPServer) setState(newState State) bool {
	currentState := h.getState()
	return h.state.CompareAndSwap(currentState, newState)
}

func (h *FastHTTPServer) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}

type fasthttpLogger struct {
	logger types.Logger
}

func (l fasthttpLogger) Printf(format string, args ...interface{}) {
	l.logger.Debug("fasthttp", zap.String("message", fmt.Sprintf(format, args...)))
}
