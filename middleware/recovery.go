package middleware

import (
	"runtime"
	"sync"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
	"github.com/saiset-co/catalog-service/utils"
)

const stackBufSize = 4096

type RecoveryMiddleware struct {
	logger         types.Logger
	metrics        types.MetricsManager
	recoveryConfig *RecoveryConfig
	weight         int
	stackBufPool   sync.Pool
}

type RecoveryConfig struct {
	StackTrace bool `json:"stack_trace"`
}

func NewRecoveryMiddleware(config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *RecoveryMiddleware {
	item := middlewaresConfig(config).Recovery

	var recoveryConfig = &RecoveryConfig{
		StackTrace: true,
	}

	if params := itemParams(item); params != nil {
		if err := utils.UnmarshalConfig(params, recoveryConfig); err != nil {
			logger.Error("Failed to unmarshal Recovery middleware config", zap.Error(err))
		}
	}

	return &RecoveryMiddleware{
		logger:         logger,
		metrics:        metrics,
		recoveryConfig: recoveryConfig,
		weight:         itemWeight(item, 1),
		stackBufPool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, stackBufSize)
				return &buf
			},
		},
	}
}

func (r *RecoveryMiddleware) Name() string { return "recovery" }
func (r *RecoveryMiddleware) Weight() int  { return r.weight }

func (r *RecoveryMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logPanic(ctx, rec)

			if r.metrics != nil {
				r.metrics.Counter("http_panics_total", map[string]string{
					"path": routeLabel(ctx),
				}).Inc()
			}

			ctx.Response.Reset()
			utils.CreateErrorResponse(ctx)
		}
	}()

	next(ctx)
}

func (r *RecoveryMiddleware) logPanic(ctx *fasthttp.RequestCtx, rec interface{}) {
	fields := []zap.Field{
		zap.Any("panic", rec),
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.String("remote_addr", ctx.RemoteIP().String()),
	}

	if requestID := ctx.Request.Header.Peek("X-Request-ID"); len(requestID) > 0 {
		fields = append(fields, zap.ByteString("request_id", requestID))
	}

	if r.recoveryConfig.StackTrace {
		r.logger.ErrorWithStack("Recovered from panic", r.stackTrace(), fields...)
		return
	}

	r.logger.Error("Recovered from panic", fields...)
}

func (r *RecoveryMiddleware) stackTrace() string {
	bufPtr := r.stackBufPool.Get().(*[]byte)
	defer r.stackBufPool.Put(bufPtr)

	buf := *bufPtr
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*4)
	}
}
